package http

import (
	"net"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/portero/internal/rate"
)

// RateLimitMiddleware limita por client_id del form, con fallback a la IP
// para requests sin client identificable. limiter nil = middleware apagado.
func RateLimitMiddleware(limiter rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.PostFormValue("client_id")
		if key == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			} else {
				key = r.RemoteAddr
			}
		}
		res, err := limiter.Allow(r.Context(), key)
		if err != nil {
			// El limiter caído no tumba el endpoint.
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			WriteError(w, http.StatusTooManyRequests, "slow_down", "rate limit exceeded", 3901)
			return
		}
		next.ServeHTTP(w, r)
	})
}
