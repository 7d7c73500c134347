package facade

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/apierr"
)

func (s *Server) inferenceListModels(c *gin.Context) {
	out, err := s.inference.ListModels(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) inferenceMetrics(c *gin.Context) {
	out, err := s.inference.GetMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, out)
}

func (s *Server) inferencePrompt(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, apierr.New(apierr.KindValidation, "malformed prompt body"))
		return
	}

	var out map[string]any
	err := s.dispatch(c, c.Param("id"), func(ctx context.Context, svcID string) error {
		result, callErr := s.inference.Prompt(ctx, svcID, body)
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
	c.JSON(http.StatusOK, out)
}
