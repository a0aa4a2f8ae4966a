package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/lasertrack/internal/app"
	"github.com/okian/lasertrack/internal/domain/model"
	"github.com/okian/lasertrack/internal/domain/replay"
	"github.com/okian/lasertrack/internal/domain/stats"
	"github.com/okian/lasertrack/internal/domain/types"
	"github.com/okian/lasertrack/pkg/logger"
)

// MatchDependencies defines the interface for match ingestion and reads.
type MatchDependencies interface {
	// Submit queues a raw log. Returns service.ErrBackpressure when full.
	Submit(ctx context.Context, raw []byte, opts service.ImportOptions) (string, error)
	Replay(ctx context.Context, id string) (*replay.Script, error)
	MatchStats(ctx context.Context, id string) (stats.Summary, error)
}

// MatchesHandler handles match requests.
type MatchesHandler struct {
	deps     MatchDependencies
	maxBytes int64
	logger   logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies, maxBytes int64, l logger.Logger) *MatchesHandler {
	return &MatchesHandler{deps: deps, maxBytes: maxBytes, logger: l}
}

// HandlePostMatch handles POST /matches. The body is the raw log; the
// optional query parameters are mode, ranked (default true) and source.
func (h *MatchesHandler) HandlePostMatch(w http.ResponseWriter, r *http.Request) {
	opts, err := importOptions(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if len(raw) == 0 {
		writeFailure(w, ErrEmptyBody)
		return
	}

	id, err := h.deps.Submit(r.Context(), raw, opts)
	if err != nil {
		h.logger.Warn(r.Context(), "match submission refused",
			logger.String("source", opts.Source),
			logger.Error(err))
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.ImportAck{Status: "accepted", JobID: id})
}

func importOptions(r *http.Request) (service.ImportOptions, error) {
	q := r.URL.Query()
	opts := service.ImportOptions{Source: q.Get("source"), Ranked: true}
	if opts.Source == "" {
		opts.Source = "http:" + r.RemoteAddr
	}
	if raw := q.Get("mode"); raw != "" {
		mode, err := model.ParseMode(raw)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	if raw := q.Get("ranked"); raw != "" {
		ranked, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: ranked %q", ErrBadRequest, raw)
		}
		opts.Ranked = ranked
	}
	return opts, nil
}

// HandleGetReplay handles GET /matches/{id}/replay.
func (h *MatchesHandler) HandleGetReplay(w http.ResponseWriter, r *http.Request) {
	script, err := h.deps.Replay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, script)
}

// HandleGetStats handles GET /matches/{id}/stats.
func (h *MatchesHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.MatchStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
