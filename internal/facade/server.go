// Package facade is the orchestrator's internal REST surface (spec §4.9),
// consumed by the gateway and by cluster-local clients.
package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/deploy"
	"github.com/clusterinfer/orchestrator/internal/handlers"
	"github.com/clusterinfer/orchestrator/internal/jobclient"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/recipe"
	"github.com/clusterinfer/orchestrator/internal/registry"
	"github.com/clusterinfer/orchestrator/internal/replica"
)

// Server holds the wired components the facade's handlers dispatch to.
type Server struct {
	loader     *recipe.Loader
	reg        *registry.Registry
	deployer   *deploy.Service
	jc         *jobclient.Client
	inference  *handlers.InferenceHandler
	vectordb   *handlers.VectorDBHandler
	coord      *replica.Coordinator
	log        *logging.Logger
}

// Deps bundles the components New wires into route handlers.
type Deps struct {
	Loader    *recipe.Loader
	Registry  *registry.Registry
	Deployer  *deploy.Service
	JobClient *jobclient.Client
	Inference *handlers.InferenceHandler
	VectorDB  *handlers.VectorDBHandler
	Coord     *replica.Coordinator
}

func New(d Deps) *Server {
	return &Server{
		loader:    d.Loader,
		reg:       d.Registry,
		deployer:  d.Deployer,
		jc:        d.JobClient,
		inference: d.Inference,
		vectordb:  d.VectorDB,
		coord:     d.Coord,
		log:       logging.With("facade"),
	}
}

// Router builds the gin engine exposing the facade's REST surface under
// /api/v1, matching the paths in spec §6.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/recipes", s.listRecipes)
		v1.GET("/recipes/*name", s.getRecipe)

		v1.POST("/services", s.createService)
		v1.GET("/services", s.listServices)
		v1.GET("/services/:id", s.getService)
		v1.DELETE("/services/:id", s.stopService)
		v1.GET("/services/:id/status", s.getServiceStatus)
		v1.GET("/services/:id/logs", s.getServiceLogs)
		v1.GET("/events", s.streamEvents)

		v1.GET("/inference/:id/models", s.inferenceListModels)
		v1.POST("/inference/:id/prompt", s.inferencePrompt)
		v1.GET("/inference/:id/metrics", s.inferenceMetrics)

		v1.GET("/vector-db/:id/collections", s.vectorListCollections)
		v1.GET("/vector-db/:id/collections/:name", s.vectorGetCollection)
		v1.PUT("/vector-db/:id/collections/:name", s.vectorCreateCollection)
		v1.PUT("/vector-db/:id/collections/:name/points", s.vectorUpsertPoints)
		v1.POST("/vector-db/:id/collections/:name/points/search", s.vectorSearchPoints)
		v1.DELETE("/vector-db/:id/collections/:name", s.vectorDeleteCollection)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	return r
}
