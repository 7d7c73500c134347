// Package gateway is the public-facing proxy (spec §4.10): it forwards
// every call under /api/v1 to the orchestrator's internal facade over the
// SSH tunnel, applying a concurrency cap and optional per-client rate limit.
package gateway

import (
	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/config"
	"github.com/clusterinfer/orchestrator/internal/sshtunnel"
)

// NewRouter builds the gateway's gin engine.
func NewRouter(cfg config.Gateway, tunnel *sshtunnel.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cap := newConcurrencyCap(cfg.ConcurrencyCap)
	rl := newClientRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst)
	r.Use(cap.middleware(), rl.middleware())

	proxy := NewProxy(tunnel, cfg.OrchestratorPort, cfg.OrchestratorHost, cfg.OrchestratorPort)
	r.Any("/api/v1/*path", proxy.Handler())
	r.GET("/events", proxy.HandlerForPath("/api/v1/events"))

	return r
}
