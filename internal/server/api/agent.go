package api

import (
	"errors"

	"watcher/internal/server/api/response"
	"watcher/internal/types"

	"github.com/gin-gonic/gin"
)

type registerAgentRequest struct {
	Name   string `json:"name" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

// registerAgent handles agent registration. The response is the only
// place the credential pair appears in plaintext.
func (api *API) registerAgent(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("name and userId are required"))
		return
	}

	agent, err := api.service.RegisterAgent(c.Request.Context(), req.Name, req.UserID)
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Created(agent)
}

// getAgent handles retrieving the authenticated agent with its applications
func (api *API) getAgent(c *gin.Context) {
	resp := response.New(c, api.logger)

	agent, err := api.service.AgentDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Success(agent)
}

type heartbeatRequest struct {
	Status string `json:"status" binding:"omitempty,agentstatus"`
}

// heartbeat handles agent liveness signals
func (api *API) heartbeat(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		resp.BadRequest(errors.New("invalid status"))
		return
	}

	agent, err := api.service.Heartbeat(c.Request.Context(), c.Param("id"), types.AgentStatus(req.Status))
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Success(agent)
}

type createApplicationRequest struct {
	Name        string `json:"name" binding:"required"`
	Port        int    `json:"port"`
	ProcessName string `json:"processName" binding:"required"`
	URL         string `json:"url"`
}

// createApplication handles registering a monitoring target
func (api *API) createApplication(c *gin.Context) {
	resp := response.New(c, api.logger)

	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(errors.New("name and processName are required"))
		return
	}

	app, err := api.service.RegisterApplication(c.Request.Context(),
		c.Param("id"), req.Name, req.Port, req.ProcessName, req.URL)
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Created(app)
}

// getApplications handles listing the agent's monitoring targets
func (api *API) getApplications(c *gin.Context) {
	resp := response.New(c, api.logger)

	apps, err := api.service.Applications(c.Request.Context(), c.Param("id"))
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Success(apps)
}
