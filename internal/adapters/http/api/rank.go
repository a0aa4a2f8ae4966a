package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/lasertrack/internal/adapters/repository"
	"github.com/okian/lasertrack/internal/domain/model"
)

// RankDependencies looks up one account's leaderboard position.
type RankDependencies interface {
	Rank(ctx context.Context, mode model.Mode, accountID string) (repository.Entry, error)
}

// ModeRank is one row of the all-modes rank response.
type ModeRank struct {
	Mode model.Mode `json:"mode"`
	repository.Entry
}

type RankHandler struct {
	deps RankDependencies
}

func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{account}?mode=M. Without mode it lists
// the account in every mode where it is ranked, and 404s when it is ranked
// in none.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if strings.TrimSpace(r.URL.Query().Get("mode")) == "" {
		h.allModes(w, r, account)
		return
	}

	mode, err := modeParam(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), mode, account)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *RankHandler) allModes(w http.ResponseWriter, r *http.Request, account string) {
	out := make([]ModeRank, 0, 2)
	for _, mode := range []model.Mode{model.ModeElimination, model.ModeBall} {
		entry, err := h.deps.Rank(r.Context(), mode, account)
		switch {
		case err == nil:
			out = append(out, ModeRank{Mode: mode, Entry: entry})
		case errors.Is(err, repository.ErrNotFound):
		default:
			writeFailure(w, err)
			return
		}
	}
	if len(out) == 0 {
		writeFailure(w, repository.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
