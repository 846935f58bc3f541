package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/gin-gonic/gin"
)

// RateLimiter allows each client IP a fixed number of requests per window.
// It guards the login endpoints against PIN and password guessing.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*ipWindow
	lastPrune time.Time
}

type ipWindow struct {
	start time.Time
	used  int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*ipWindow),
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		wait, ok := rl.take(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// take spends one request of ip's current window. When the window is used
// up it reports how long until the next one opens.
func (rl *RateLimiter) take(ip string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.pruneLocked(now)

	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.start) >= rl.window {
		w = &ipWindow{start: now}
		rl.windows[ip] = w
	}
	if w.used >= rl.limit {
		return w.start.Add(rl.window).Sub(now), false
	}
	w.used++
	return 0, true
}

// pruneLocked drops expired windows, at most once per window.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < rl.window {
		return
	}
	rl.lastPrune = now
	for ip, w := range rl.windows {
		if now.Sub(w.start) >= rl.window {
			delete(rl.windows, ip)
		}
	}
}
