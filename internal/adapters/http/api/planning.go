package api

import (
	"context"
	"net/http"

	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/rating"
	"github.com/okian/lasertrack/internal/domain/types"
)

// PlanningDependencies covers matchmaking reads.
type PlanningDependencies interface {
	Predict(ctx context.Context, mode model.Mode, teams [][]string) (types.Prediction, error)
	Balance(ctx context.Context, req types.BalanceRequest) (rating.Lineup, error)
}

// PlanningHandler serves win prediction and team balancing.
type PlanningHandler struct {
	deps PlanningDependencies
}

// NewPlanningHandler creates a new planning handler.
func NewPlanningHandler(deps PlanningDependencies) *PlanningHandler {
	return &PlanningHandler{deps: deps}
}

// HandlePredict handles POST /predict.
func (h *PlanningHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req types.PredictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeFailure(w, err)
		return
	}
	p, err := h.deps.Predict(r.Context(), req.Mode, req.Teams)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleBalance handles POST /balance.
func (h *PlanningHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	var req types.BalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeFailure(w, err)
		return
	}
	lineup, err := h.deps.Balance(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lineup)
}
