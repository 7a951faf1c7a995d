package server

import (
	"net/http"
	"strconv"

	auditdomain "github.com/fiscalia/limits/internal/audit/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListAudit(c *gin.Context) {
	req := auditdomain.ListRequest{
		DocID:  c.Query("doc_id"),
		Source: c.Query("source"),
		Limit:  50,
	}
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			req.Limit = parsed
		}
	}

	entries, err := s.auditsvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": entries})
}
