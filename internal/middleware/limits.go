package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/ratelimit"
)

// MsgTooManyRequests is returned with 429
const MsgTooManyRequests = "Muitas tentativas. Aguarde um minuto e tente novamente."

// RateLimit allows perMinute requests per client IP and scope. Limiter
// errors let the request through; an unavailable Redis must not block
// checkout.
func RateLimit(limiter ratelimit.Limiter, scope string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + clientIP(r)
			allowed, retryAfter, err := limiter.Allow(r.Context(), key, perMinute, time.Minute)
			if err != nil {
				logger.WithContext(r.Context()).Warn("Rate limiter unavailable; allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
			if !allowed {
				write429(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// write429 writes Too Many Requests
func write429(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{"error": MsgTooManyRequests})
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
