// Package handler implements the read-only report API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the request ID that logger.AccessLog assigned
func getRequestID(c *gin.Context) string {
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		return id
	}
	return c.Writer.Header().Get(logger.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.OK(data))
}

// Error sends an error response, deriving the status from the error code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.Fail(code, message, getRequestID(c)))
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// InternalError logs err and sends a 500 without leaking its text
func (h *BaseHandler) InternalError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	logger.L(c.Request.Context()).Error(message, zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, message)
}
