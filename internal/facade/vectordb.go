package facade

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/handlers"
)

func (s *Server) vectorListCollections(c *gin.Context) {
	out, err := s.vectordb.ListCollections(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) vectorGetCollection(c *gin.Context) {
	out, err := s.vectordb.GetCollectionInfo(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type createCollectionRequest struct {
	VectorSize int              `json:"vector_size"`
	Distance   handlers.Distance `json:"distance"`
}

func (s *Server) vectorCreateCollection(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.New(apierr.KindValidation, "malformed create-collection body"))
		return
	}

	if err := s.vectordb.CreateCollection(c.Request.Context(), c.Param("id"), c.Param("name"), req.VectorSize, req.Distance); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) vectorDeleteCollection(c *gin.Context) {
	if err := s.vectordb.DeleteCollection(c.Request.Context(), c.Param("id"), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) vectorUpsertPoints(c *gin.Context) {
	var points []handlers.Point
	if err := c.ShouldBindJSON(&points); err != nil {
		writeError(c, apierr.New(apierr.KindValidation, "malformed upsert body"))
		return
	}

	name := c.Param("name")
	err := s.dispatch(c, c.Param("id"), func(ctx context.Context, svcID string) error {
		return s.vectordb.UpsertPoints(ctx, svcID, name, points)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) vectorSearchPoints(c *gin.Context) {
	var req struct {
		Vector []float32 `json:"query_vector"`
		Limit  int       `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.New(apierr.KindValidation, "malformed search body"))
		return
	}

	name := c.Param("name")
	var out []map[string]any
	err := s.dispatch(c, c.Param("id"), func(ctx context.Context, svcID string) error {
		result, callErr := s.vectordb.SearchPoints(ctx, svcID, name, req.Vector, req.Limit)
		if callErr != nil {
			return callErr
		}
		out = result
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": out})
}
