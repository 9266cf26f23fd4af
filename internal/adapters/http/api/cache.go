package api

import (
	"net/http"
	"strconv"

	"github.com/okian/civiclens/pkg/logger"
)

// CacheHandler serves cache administration.
type CacheHandler struct {
	deps CacheDependencies
	log  logger.Logger
}

// NewCacheHandler creates a cache handler.
func NewCacheHandler(deps CacheDependencies, log logger.Logger) *CacheHandler {
	return &CacheHandler{deps: deps, log: log}
}

// HandleStats handles GET /v1/cache/stats.
func (h *CacheHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.GetCacheStats(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, "api.cache_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleClear handles DELETE /v1/cache?pattern=<glob>&frames=<bool>.
func (h *CacheHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	const op = "api.cache_clear"
	q := r.URL.Query()
	purge := false
	if v := q.Get("frames"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(r.Context(), h.log, w, op, ErrBadRequest)
			return
		}
		purge = b
	}
	res, err := h.deps.ClearCache(r.Context(), q.Get("pattern"), purge)
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
