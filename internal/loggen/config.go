package loggen

import (
	"time"

	"github.com/okian/lasertrack/internal/domain/model"
)

// Config holds the settings of a generate or load run.
type Config struct {
	Seed      int64      // Seed of the name and outcome generator
	Matches   int        // Number of matches to generate
	Roster    int        // Accounts in the player pool
	TeamSize  int        // Players per team
	Mode      model.Mode // ModeUnknown alternates both modes
	Arena     string     // Arena written to the system header
	Start     time.Time  // Mission start of the first match
	OutputDir string     // Where logs are written; empty skips writing

	BaseURL      string        // Service to load; empty skips submission
	Workers      int           // Concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	DrainTimeout time.Duration // How long to wait for queued imports
	TopN         int           // Leaderboard rows to fetch and verify
	Verbose      bool
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() Config {
	return Config{
		Seed:         DefaultSeed,
		Matches:      DefaultMatches,
		Roster:       DefaultRoster,
		TeamSize:     DefaultTeamSize,
		Arena:        DefaultArena,
		Start:        DefaultStart,
		Workers:      4,
		Timeout:      DefaultTimeout,
		DrainTimeout: DefaultDrainTimeout,
		TopN:         DefaultTopN,
	}
}

// Stats holds run statistics.
type Stats struct {
	MatchesGenerated   int
	MatchesSubmitted   int
	MatchesAccepted    int
	MatchesFailed      int
	RankingsRetrieved  int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
