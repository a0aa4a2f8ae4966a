package loggen

import "time"

// Generator defaults.
const (
	DefaultSeed         = 1
	DefaultMatches      = 20
	DefaultRoster       = 24
	DefaultTeamSize     = 5
	DefaultTopN         = 20
	DefaultMatchGap     = 20 * time.Minute
	DefaultArena        = "Northside"
	matchDurationMS     = 900_000
	ballDurationMS      = 600_000
	eliminationDesc     = "Space Marines 5 Tournament"
	ballDesc            = "Laserball League"
	maxDownsPerPlayer   = 8
	guestOneIn          = 10
	minEventGapMS       = 1_500
	maxEventGapMS       = 12_000
	downedScore         = 100
	downedTargetScore   = -20
	goalScore           = 1
	logFilePermission   = 0o600
	directoryPermission = 0o750
)

// Runner defaults.
const (
	DefaultBaseURL       = "http://localhost:9080"
	DefaultTimeout       = 30 * time.Second
	DefaultDrainTimeout  = 2 * time.Minute
	drainPollInterval    = 250 * time.Millisecond
	PercentageMultiplier = 100
)

// DefaultStart is the mission start of the first generated match.
var DefaultStart = time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)
