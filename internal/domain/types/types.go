// Package types contains request and response shapes shared by the service
// and its HTTP surface.
package types

import (
	"errors"
	"fmt"

	"github.com/okian/lasertrack/internal/domain/model"
)

// ErrInvalid marks a request that failed validation.
var ErrInvalid = errors.New("invalid request")

// Prediction is the win probability of each proposed team.
type Prediction struct {
	Mode          model.Mode `json:"mode"`
	Teams         [][]string `json:"teams"`
	Probabilities []float64  `json:"probabilities"`
}

// PredictRequest mirrors the body of POST /predict.
type PredictRequest struct {
	Mode  model.Mode `json:"mode"`
	Teams [][]string `json:"teams"`
}

// Validate checks team count and that no account plays twice.
func (r PredictRequest) Validate() error {
	if r.Mode == model.ModeUnknown {
		return fmt.Errorf("%w: missing mode", ErrInvalid)
	}
	if len(r.Teams) < 2 || len(r.Teams) > 4 {
		return fmt.Errorf("%w: need 2 to 4 teams, got %d", ErrInvalid, len(r.Teams))
	}
	seen := make(map[string]struct{})
	for i, team := range r.Teams {
		if len(team) == 0 {
			return fmt.Errorf("%w: team %d is empty", ErrInvalid, i)
		}
		for _, id := range team {
			if id == "" {
				return fmt.Errorf("%w: empty account id in team %d", ErrInvalid, i)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: account %s listed twice", ErrInvalid, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// BalanceRequest asks for a fair split of accounts into teams.
type BalanceRequest struct {
	Mode     model.Mode `json:"mode"`
	Accounts []string   `json:"accounts"`
	Teams    int        `json:"teams"`
	// Trials defaults to the configured number of partitions.
	Trials int `json:"trials,omitempty"`
	// Seed fixes the shuffle; zero draws one from the clock.
	Seed uint64 `json:"seed,omitempty"`
}

// Validate checks the team count against the account list.
func (r BalanceRequest) Validate() error {
	switch {
	case r.Mode == model.ModeUnknown:
		return fmt.Errorf("%w: missing mode", ErrInvalid)
	case r.Teams < 2 || r.Teams > 4:
		return fmt.Errorf("%w: need 2 to 4 teams, got %d", ErrInvalid, r.Teams)
	case len(r.Accounts) < r.Teams:
		return fmt.Errorf("%w: %d accounts for %d teams", ErrInvalid, len(r.Accounts), r.Teams)
	case r.Trials < 0:
		return fmt.Errorf("%w: negative trials", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(r.Accounts))
	for _, id := range r.Accounts {
		if id == "" {
			return fmt.Errorf("%w: empty account id", ErrInvalid)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: account %s listed twice", ErrInvalid, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ImportAck is the response to a queued import.
type ImportAck struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}
