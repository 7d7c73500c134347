package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// concurrencyCap bounds in-flight requests at the gateway; beyond the cap,
// new requests receive 503 with a retry-after hint (spec §5).
type concurrencyCap struct {
	sem *semaphore.Weighted
}

func newConcurrencyCap(limit int) *concurrencyCap {
	if limit <= 0 {
		limit = 128
	}
	return &concurrencyCap{sem: semaphore.NewWeighted(int64(limit))}
}

func (cc *concurrencyCap) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cc.sem.TryAcquire(1) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "concurrency cap reached"})
			return
		}
		defer cc.sem.Release(1)
		c.Next()
	}
}
