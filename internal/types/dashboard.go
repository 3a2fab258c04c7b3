package types

// Summary represents the dashboard summary counts
type Summary struct {
	TotalAgents       int `json:"totalAgents"`
	OnlineAgents      int `json:"onlineAgents"`
	TotalApplications int `json:"totalApplications"`
	ActiveDowntimes   int `json:"activeDowntimes"`
}
