package mockapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// limiterStore hands out one token bucket per API key
type limiterStore struct {
	mu      sync.Mutex
	every   time.Duration
	entries map[string]*rate.Limiter
}

// SetRateLimit makes the server answer 429 to a key that sends two requests
// closer together than every. Zero turns limiting off.
func (b *Backend) SetRateLimit(every time.Duration) {
	b.limits.mu.Lock()
	defer b.limits.mu.Unlock()
	b.limits.every = every
	b.limits.entries = make(map[string]*rate.Limiter)
}

// allow reports whether key may be served now
func (s *limiterStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.every <= 0 {
		return true
	}
	lim, ok := s.entries[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.every), 1)
		s.entries[key] = lim
	}
	return lim.Allow()
}

// RateLimitMiddleware rejects keys that exceed the backend's rate limit
func (h *Handler) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.backend.limits.allow(mux.Vars(r)["key"]) {
			w.Header().Set("Retry-After", "1")
			respondStatus(w, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
