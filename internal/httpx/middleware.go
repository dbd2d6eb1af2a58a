package httpx

import (
	"crypto/subtle"
	"net"
	"net/http"
)

// requireAdmin is a no-op when no token is configured.
func (h *OrdersHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.AdminToken != "" {
			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) != 1 {
				respond(w, http.StatusUnauthorized, false, "unauthorized", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit fails open when the limiter errors.
func (h *OrdersHandler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter != nil {
			ok, err := h.Limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				h.Logger.Printf("rate limit: %v", err)
			} else if !ok {
				respond(w, http.StatusTooManyRequests, false, "too many requests", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
