package facade

import (
	"context"

	"github.com/gin-gonic/gin"
)

// dispatch resolves id to either a single service (direct call) or, if id
// names a replica group, routes the call through the round-robin load
// balancer across the group's healthy members (spec §4.8).
func (s *Server) dispatch(c *gin.Context, id string, fn func(ctx context.Context, svcID string) error) error {
	if _, err := s.reg.GetGroup(id); err == nil {
		return s.coord.Call(c.Request.Context(), id, fn)
	}
	return fn(c.Request.Context(), id)
}
