package facade

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clusterinfer/orchestrator/internal/apierr"
)

// writeError is the single place an error becomes an HTTP response: it
// type-switches on *apierr.Error for the right status and a safe detail
// message, falling back to 500 for anything unrecognized (spec §7).
func writeError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if apierr.As(err, &apiErr) {
		c.JSON(apiErr.HTTPStatus(), gin.H{"detail": apiErr.Detail})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}
