package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/model"
)

const defaultLeaderboardLimit = 10

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, mode model.Mode, limit int) ([]repository.Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard?mode=M&limit=N requests.
// The limit defaults to 10; the service enforces the upper bound.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	mode, err := modeParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	n := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil {
			writeFailure(w, fmt.Errorf("%w: limit %q", ErrBadRequest, raw))
			return
		}
	}
	entries, err := h.deps.Leaderboard(r.Context(), mode, n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if entries == nil {
		entries = []repository.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
