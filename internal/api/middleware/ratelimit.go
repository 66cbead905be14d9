package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bioscopeai/bioscope-core/internal/api/response"
)

// RateLimit applies a token-bucket limit per caller identity. Limits are
// adjustable at runtime so operators can throttle a misbehaving dashboard
// without a restart.
type RateLimit struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimit creates a RateLimit with the specified requests per second
// and burst size per caller.
func NewRateLimit(rps float64, burst int) *RateLimit {
	return &RateLimit{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// UpdateLimits adjusts the requests per second and burst size. Existing
// per-caller limiters are updated in place.
func (rl *RateLimit) UpdateLimits(rps float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rps = rate.Limit(rps)
	rl.burst = burst
	for _, l := range rl.limiters {
		l.SetLimit(rl.rps)
		l.SetBurst(burst)
	}
}

func (rl *RateLimit) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Limit rejects requests exceeding the caller's rate budget. Requests
// without an identity share a single anonymous bucket.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "anonymous"
		if userID, ok := GetUserID(r); ok {
			key = userID.String()
		}

		if !rl.limiterFor(key).Allow() {
			w.Header().Set("Retry-After", "1")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
