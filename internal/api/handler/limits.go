package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/limits"
)

// LimitsHandler exposes cache administration for the limit snapshot.
type LimitsHandler struct {
	cache *limits.Cache
}

func NewLimitsHandler(cache *limits.Cache) *LimitsHandler {
	return &LimitsHandler{cache: cache}
}

// Refresh reloads the limit snapshot from storage. Limit administration
// tooling calls this after writing limit rows so changes take effect before
// the TTL elapses.
func (h *LimitsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.cache.Refresh(r.Context())
	if err != nil {
		zap.L().Error("limit cache refresh failed", zap.Error(err))
		RespondError(w, r, http.StatusServiceUnavailable, "limits/refresh-failed", "could not reload limits")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"active_limits": len(loaded)})
}

// Invalidate drops the cached snapshot without reloading.
func (h *LimitsHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.cache.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
