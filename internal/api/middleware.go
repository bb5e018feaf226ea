package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/incidentops/analysis-gateway/internal/auth"
)

// RateLimit gates every request before any other work. The identifier is
// the authenticated app ID (anonymous otherwise); a registered app's
// rate_limit_per_hour overrides the configured default when set. The
// limiter itself fails open, so this middleware only ever rejects on a
// genuinely exhausted quota.
func (h *Handler) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := "anonymous"
		limit := h.rateLimitRequests
		window := h.rateLimitWindow

		if claims, ok := auth.AppFromContext(r.Context()); ok && claims.AppID != "" {
			identifier = claims.AppID
			if h.registry != nil {
				if app, err := h.registry.GetAppByAPIKey(r.Context(), claims.APIKey); err == nil && app.RateLimitPerHour > 0 {
					limit = app.RateLimitPerHour
					window = time.Hour
				}
			}
		}

		if !h.limiter.Allow(r.Context(), identifier, limit, window) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		remaining := h.limiter.Remaining(r.Context(), identifier, limit, window)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		next.ServeHTTP(w, r)
	})
}
