package facade

import (
	"io"

	"github.com/gin-gonic/gin"
)

// streamEvents emits a Server-Sent Event for every registry status
// transition, per SPEC_FULL.md §C.2's service-status event stream.
func (s *Server) streamEvents(c *gin.Context) {
	sub, cancel := s.reg.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent("status", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
