// Package api exposes the HTTP ingestion and read API.
package api

import (
	"net/http"

	"watcher/internal/server/api/response"
	"watcher/internal/server/service"
	"watcher/internal/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// API represents the HTTP API handlers
type API struct {
	service *service.Service
	logger  *zap.Logger
}

// NewAPI creates a new API instance
func NewAPI(svc *service.Service, logger *zap.Logger) *API {
	return &API{
		service: svc,
		logger:  logger,
	}
}

// index handles the service banner
func (api *API) index(c *gin.Context) {
	response.New(c, api.logger).Success(gin.H{
		"name":    "watcher",
		"status":  "ok",
		"version": version.Version,
	})
}

// health handles the health check including storage reachability
func (api *API) health(c *gin.Context) {
	resp := response.New(c, api.logger)

	if err := api.service.Ping(c.Request.Context()); err != nil {
		api.logger.Error("health check failed", zap.Error(err))
		resp.Error(http.StatusServiceUnavailable, err)
		return
	}

	resp.Success(gin.H{"status": "ok"})
}
