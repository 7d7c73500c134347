package gateway

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/clusterinfer/orchestrator/internal/logging"
)

const (
	rateLimitTTL             = 10 * time.Minute
	rateLimitExceededMessage = "rate limit exceeded"
)

type clientRateState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientRateLimiter enforces a per-client-IP requests-per-minute cap,
// disabled when rpm<=0 (spec's gateway concurrency/backpressure model).
type clientRateLimiter struct {
	enabled bool
	limit   rate.Limit
	burst   int

	mu      sync.Mutex
	clients map[string]*clientRateState

	log *logging.Logger
}

func newClientRateLimiter(rpm, burst int) *clientRateLimiter {
	if rpm <= 0 {
		return &clientRateLimiter{enabled: false}
	}
	if burst < 1 {
		burst = 1
	}
	return &clientRateLimiter{
		enabled: true,
		limit:   rate.Limit(float64(rpm) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientRateState),
		log:     logging.With("gateway-rate-limiter"),
	}
}

func (rl *clientRateLimiter) allow(clientKey string) bool {
	now := time.Now()
	cutoff := now.Add(-rateLimitTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, state := range rl.clients {
		if state.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}

	state, ok := rl.clients[clientKey]
	if !ok {
		state = &clientRateState{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientKey] = state
	}
	state.lastSeen = now

	return state.limiter.Allow()
}

func (rl *clientRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || !rl.enabled {
			c.Next()
			return
		}

		clientIP := strings.TrimSpace(c.ClientIP())
		if clientIP == "" {
			clientIP = "unknown"
		}

		if !rl.allow(clientIP) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": rateLimitExceededMessage})
			return
		}

		c.Next()
	}
}
