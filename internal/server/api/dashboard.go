package api

import (
	"watcher/internal/server/api/response"
	"watcher/internal/types"

	"github.com/gin-gonic/gin"
)

// getDashboardAgents handles listing all agents with their counts
func (api *API) getDashboardAgents(c *gin.Context) {
	resp := response.New(c, api.logger)

	agents, err := api.service.DashboardAgents(c.Request.Context())
	if err != nil {
		resp.FromError(err)
		return
	}

	if agents == nil {
		agents = []*types.AgentOverview{}
	}
	resp.Success(agents)
}

// getSummary handles the dashboard summary counts
func (api *API) getSummary(c *gin.Context) {
	resp := response.New(c, api.logger)

	summary, err := api.service.Summary(c.Request.Context())
	if err != nil {
		resp.FromError(err)
		return
	}

	resp.Success(summary)
}
