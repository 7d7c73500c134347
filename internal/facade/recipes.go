package facade

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) listRecipes(c *gin.Context) {
	recipes := s.loader.ListAll()
	out := make([]gin.H, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, gin.H{"id": r.ID, "name": r.Spec.Name, "category": r.Spec.Category})
	}
	c.JSON(http.StatusOK, gin.H{"recipes": out})
}

func (s *Server) getRecipe(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	rec, err := s.loader.Load(name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
