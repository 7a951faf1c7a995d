package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	configdomain "github.com/fiscalia/limits/internal/limitconfig/domain"
	"github.com/fiscalia/limits/internal/limiterr"
)

func (s *Server) ListConfigs(c *gin.Context) {
	configs, err := s.configsvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

func (s *Server) GetConfig(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrNotFound, "", 0, 0, "year must be numeric"))
		return
	}

	cfg, err := s.configsvc.Get(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) UpsertConfig(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrInvalidConfig, "", 0, 0, "year must be numeric"))
		return
	}

	var req configdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, limiterr.Newf(limiterr.ErrInvalidConfig, "", year, 0, "malformed request body"))
		return
	}
	req.Year = year
	req.UserID = actorID(c)

	cfg, err := s.configsvc.Upsert(c.Request.Context(), req)
	if err != nil && !errors.Is(err, limiterr.ErrPartialSuccess) {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
