package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/fiscalia/limits/internal/limiterr"
)

type errorPayload struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	TenantID string `json:"tenant_id,omitempty"`
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	payload := errorPayload{Type: "internal_error", Message: err.Error()}

	var structured *limiterr.Error
	if errors.As(err, &structured) {
		payload.Type = structured.Kind.Error()
		payload.TenantID = structured.TenantID
		payload.Year = structured.Year
		payload.Month = structured.Month
	}

	switch {
	case errors.Is(err, limiterr.ErrInvalidDelta), errors.Is(err, limiterr.ErrInvalidConfig):
		return http.StatusBadRequest, payload
	case errors.Is(err, limiterr.ErrConfigMissing):
		return http.StatusUnprocessableEntity, payload
	case errors.Is(err, limiterr.ErrNotFound):
		return http.StatusNotFound, payload
	case errors.Is(err, limiterr.ErrConflict), errors.Is(err, limiterr.ErrTooManyConflicts):
		return http.StatusConflict, payload
	case errors.Is(err, limiterr.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable, payload
	case errors.Is(err, limiterr.ErrTimeout):
		return http.StatusGatewayTimeout, payload
	default:
		return http.StatusInternalServerError, payload
	}
}
