package stubapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/api"
)

// limiter is a fixed-window per-client request counter. Exceeding the window
// yields the RATE_LIMITED envelope, same as the remote API.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow

	requestsPerMinute int
	now               func() time.Time
}

type clientWindow struct {
	windowStart time.Time
	requests    int
}

func newLimiter(requestsPerMinute int) *limiter {
	return &limiter{
		clients:           make(map[string]*clientWindow),
		requestsPerMinute: requestsPerMinute,
		now:               time.Now,
	}
}

func (rl *limiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.windowStart) > time.Minute {
		rl.clients[clientIP] = &clientWindow{windowStart: now, requests: 1}
		return true
	}

	client.requests++
	return client.requests <= rl.requestsPerMinute
}

func (rl *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, api.CodeRateLimited, "Too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
