package middleware

import (
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an owner's limiter survives without requests.
const idleLimiterTTL = 10 * time.Minute

// RateLimit allows each owner perMinute requests with the given burst.
// Requests without an identity share one limiter keyed by remote address.
func RateLimit(perMinute, burst int, log zerolog.Logger) func(http.Handler) http.Handler {
	limiters := cache.New(idleLimiterTTL, 2*idleLimiterTTL)
	every := time.Minute / time.Duration(max(perMinute, 1))

	limiterFor := func(key string) *rate.Limiter {
		if l, ok := limiters.Get(key); ok {
			limiters.SetDefault(key, l)
			return l.(*rate.Limiter)
		}
		l := rate.NewLimiter(rate.Every(every), max(burst, 1))
		if err := limiters.Add(key, l, cache.DefaultExpiration); err != nil {
			// Another request created it first.
			if existing, ok := limiters.Get(key); ok {
				return existing.(*rate.Limiter)
			}
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if id, ok := IdentityFrom(r.Context()); ok {
				key = id.OwnerID
			}
			if !limiterFor(key).Allow() {
				log.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("key", key).
					Msg("Rate limit exceeded")
				WriteError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
