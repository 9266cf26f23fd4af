package api

import "net/http"

// StatsProvider exposes free-form service counters for GET /stats.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler serves the operator stats snapshot.
type StatsHandler struct {
	provider StatsProvider
}

func NewStatsHandler(p StatsProvider) *StatsHandler {
	return &StatsHandler{provider: p}
}

// HandleStats answers GET /stats. The snapshot is live, so it must not be cached.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.provider.GetStats()
	if stats == nil {
		stats = map[string]any{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}
