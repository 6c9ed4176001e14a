package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

// rateLimiter keeps one token bucket per client IP. Idle buckets are swept
// once a minute so the map does not grow with every address ever seen.
type rateLimiter struct {
	config  RateLimitConfig
	clients map[string]*rate.Limiter
	mu      sync.RWMutex
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	limiter := &rateLimiter{
		config:  config,
		clients: make(map[string]*rate.Limiter),
	}
	if config.Enabled {
		go limiter.sweepIdleClients()
	}
	return limiter
}

func (rl *rateLimiter) limiterFor(clientIP string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.clients[clientIP]
	rl.mu.RUnlock()

	if !exists {
		limiter = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
		rl.mu.Lock()
		rl.clients[clientIP] = limiter
		rl.mu.Unlock()
	}
	return limiter
}

func (rl *rateLimiter) sweepIdleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for clientIP, limiter := range rl.clients {
			// A full bucket means the client has been idle long enough.
			if limiter.TokensAt(time.Now()) == float64(rl.config.BurstSize) {
				delete(rl.clients, clientIP)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
