package api

import (
	"errors"
	"strconv"

	"watcher/internal/server/api/response"
	"watcher/internal/server/storage"
	"watcher/internal/types"

	"github.com/gin-gonic/gin"
)

type reportDowntimeRequest struct {
	ApplicationID string `json:"applicationId" binding:"required"`
	Reason        string `json:"reason"`
	Severity      string `json:"severity" binding:"omitempty,severity"`
}

// reportDowntime handles a process-not-found report. A report against an
// application with an open downtime returns that record with status 200;
// a new downtime returns 201 and triggers escalation when configured.
func (api *API) reportDowntime(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req reportDowntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("invalid downtime payload"))
		return
	}

	downtime, created, err := api.service.ReportDowntime(c.Request.Context(),
		c.Param("id"), req.ApplicationID, req.Reason, types.Severity(req.Severity))
	if err != nil {
		resp.FromError(err)
		return
	}

	if created {
		resp.Created(downtime)
		return
	}
	resp.Success(downtime)
}

// resolveDowntime handles closing a downtime. Idempotent.
func (api *API) resolveDowntime(c *gin.Context) {
	resp := response.New(c, api.logger)

	downtime, err := api.service.ResolveDowntime(c.Request.Context(), c.Param("id"))
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Success(downtime)
}

// getDowntimes handles listing downtimes with optional filters
func (api *API) getDowntimes(c *gin.Context) {
	resp := response.New(c, api.logger)

	query := storage.DowntimeQuery{
		AgentID:       c.Query("agentId"),
		ApplicationID: c.Query("applicationId"),
	}

	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			resp.BadRequest(errors.New("invalid resolved filter"))
			return
		}
		query.Resolved = &resolved
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			resp.BadRequest(errors.New("invalid limit"))
			return
		}
		query.Limit = n
	}

	downtimes, err := api.service.Downtimes(c.Request.Context(), query)
	if err != nil {
		resp.FromError(err)
		return
	}

	if downtimes == nil {
		downtimes = []*types.Downtime{}
	}
	resp.Success(downtimes)
}
