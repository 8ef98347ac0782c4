package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"schemakit/internal/responses"
)

const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	rpm   int
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter allows rpm requests per minute per client, with bursts of up
// to burst. Non-positive values are raised to 1.
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if rpm <= 0 {
		rpm = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rpm:     rpm,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
}

func (rl *RateLimiter) allow(clientID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, id)
		}
	}

	cl, ok := rl.clients[clientID]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.rpm)), rl.burst),
		}
		rl.clients[clientID] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			responses.Fail(c, http.StatusTooManyRequests, nil, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
