package api

import (
	"net/http"
	"strings"
)

// StatsProvider exposes the service counters served on /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves service counters as a flat JSON object.
type StatsHandler struct {
	statsProvider StatsProvider
}

func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats. A comma-separated keys parameter narrows
// the response to those counters; unknown keys are left out.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	all := h.statsProvider.GetStats()
	w.Header().Set("Cache-Control", "no-store")

	raw := r.URL.Query().Get("keys")
	if raw == "" {
		writeJSON(w, http.StatusOK, all)
		return
	}
	out := make(map[string]interface{})
	for _, k := range strings.Split(raw, ",") {
		if v, ok := all[strings.TrimSpace(k)]; ok {
			out[strings.TrimSpace(k)] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}
