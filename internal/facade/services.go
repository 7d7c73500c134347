package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/deploy"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

func (s *Server) createService(c *gin.Context) {
	var req deploy.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.New(apierr.KindValidation, "malformed request body"))
		return
	}
	if req.RecipeName == "" {
		writeError(c, apierr.New(apierr.KindValidation, "recipe_name is required"))
		return
	}

	result, err := s.deployer.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": s.reg.All()})
}

func (s *Server) getService(c *gin.Context) {
	svc, err := s.reg.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) stopService(c *gin.Context) {
	id := c.Param("id")
	svc, err := s.reg.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.jc.Cancel(c.Request.Context(), schedulerJobID(svc)); err != nil {
		writeError(c, err)
		return
	}
	if err := s.reg.UpdateStatus(id, registry.StatusCancelled); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getServiceStatus(c *gin.Context) {
	id := c.Param("id")
	svc, err := s.reg.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	meta, err := s.jc.Status(c.Request.Context(), schedulerJobID(svc))
	if err == nil {
		if updateErr := s.reg.UpdateStatus(id, meta.Status); updateErr != nil {
			s.log.Warnf("status refresh for %s rejected: %v", id, updateErr)
		}
		svc, _ = s.reg.Get(id)
	}

	c.JSON(http.StatusOK, gin.H{"id": svc.ID, "status": svc.Status})
}

func (s *Server) getServiceLogs(c *gin.Context) {
	id := c.Param("id")
	svc, err := s.reg.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	stdout, stderr, err := s.jc.FetchLogs(c.Request.Context(), schedulerJobID(svc))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stdout": stdout, "stderr": stderr})
}

// schedulerJobID returns the real scheduler job id backing svc, which for a
// replica-group member differs from its registry id.
func schedulerJobID(svc registry.Service) string {
	if svc.JobID != "" {
		return svc.JobID
	}
	return svc.ID
}
