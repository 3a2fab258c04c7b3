// Package response provides helpers for the API's JSON response contract.
// Payloads are returned bare; errors use a single {"error": "..."} shape.
package response

import (
	"errors"
	"net/http"

	"watcher/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler provides methods for API responses
type Handler struct {
	ctx    *gin.Context
	logger *zap.Logger
}

// New creates a new response handler
func New(c *gin.Context, logger *zap.Logger) *Handler {
	return &Handler{
		ctx:    c,
		logger: logger,
	}
}

// Success sends the payload with status 200
func (h *Handler) Success(data any) {
	h.ctx.JSON(http.StatusOK, data)
}

// Created sends the payload with status 201
func (h *Handler) Created(data any) {
	h.ctx.JSON(http.StatusCreated, data)
}

// Error sends an error response
func (h *Handler) Error(status int, err error) {
	h.ctx.JSON(status, gin.H{"error": err.Error()})
}

// BadRequest sends a bad request error response
func (h *Handler) BadRequest(err error) {
	h.Error(http.StatusBadRequest, err)
}

// Unauthorized sends an authentication error response
func (h *Handler) Unauthorized(err error) {
	h.Error(http.StatusUnauthorized, err)
}

// NotFound sends a not found error response
func (h *Handler) NotFound(err error) {
	h.Error(http.StatusNotFound, err)
}

// InternalError sends an internal server error response
func (h *Handler) InternalError(err error) {
	h.Error(http.StatusInternalServerError, err)
}

// FromError maps a service error to its HTTP status. Unrecognized errors
// are logged and surfaced as a generic 500.
func (h *Handler) FromError(err error) {
	switch {
	case errors.Is(err, types.ErrInvalidCredentials):
		h.Unauthorized(err)
	case errors.Is(err, types.ErrAgentNotFound),
		errors.Is(err, types.ErrApplicationNotFound),
		errors.Is(err, types.ErrDowntimeNotFound):
		h.NotFound(err)
	default:
		h.logger.Error("request failed",
			zap.String("path", h.ctx.FullPath()),
			zap.Error(err))
		h.InternalError(errors.New("internal server error"))
	}
}
