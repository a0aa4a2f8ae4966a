package rating

import "errors"

// Sentinel kinds for rating operations.
var (
	ErrRatingNotFound = errors.New("rating not found")
	ErrTeamCount      = errors.New("unsupported number of teams")
	ErrRankCount      = errors.New("ranks do not match teams")
	ErrEmptyTeam      = errors.New("team has no players")
	ErrTooFewPlayers  = errors.New("not enough players to balance")
)
