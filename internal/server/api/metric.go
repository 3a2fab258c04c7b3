package api

import (
	"errors"
	"strconv"

	"watcher/internal/server/api/response"
	"watcher/internal/types"

	"github.com/gin-gonic/gin"
)

type submitMetricRequest struct {
	ApplicationID string   `json:"applicationId" binding:"required"`
	CPU           float64  `json:"cpu"`
	Memory        float64  `json:"memory"`
	Uptime        float64  `json:"uptime"`
	ResponseTime  *float64 `json:"responseTime"`
	RequestCount  int64    `json:"requestCount"`
	ErrorCount    int64    `json:"errorCount"`
}

// submitMetric handles metric ingestion. Numeric fields must be JSON
// numbers; non-numeric input fails binding. Missing counts default to 0
// and a missing response time is stored as absent.
func (api *API) submitMetric(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req submitMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("invalid metric payload"))
		return
	}

	metric := &types.Metric{
		ApplicationID: req.ApplicationID,
		CPU:           req.CPU,
		Memory:        req.Memory,
		Uptime:        req.Uptime,
		ResponseTime:  req.ResponseTime,
		RequestCount:  req.RequestCount,
		ErrorCount:    req.ErrorCount,
	}

	saved, err := api.service.SubmitMetric(c.Request.Context(), c.Param("id"), metric)
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Created(saved)
}

// getMetrics handles listing an application's most recent metrics
func (api *API) getMetrics(c *gin.Context) {
	resp := response.New(c, api.logger)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			resp.BadRequest(errors.New("invalid limit"))
			return
		}
		limit = n
	}

	metrics, err := api.service.Metrics(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Success(metrics)
}
