package types

import "time"

// Metric represents a point-in-time observation of one application.
// Metrics are append-only; ordering is store-assigned creation order and
// only approximately wall-clock ordered across agents.
type Metric struct {
	ID            int64     `json:"id"`
	AgentID       string    `json:"agentId"`
	ApplicationID string    `json:"applicationId"`
	CPU           float64   `json:"cpu"`    // percent
	Memory        float64   `json:"memory"` // MB
	Uptime        float64   `json:"uptime"` // seconds since epoch, agent-observed
	ResponseTime  *float64  `json:"responseTime,omitempty"`
	RequestCount  int64     `json:"requestCount"`
	ErrorCount    int64     `json:"errorCount"`
	Timestamp     time.Time `json:"timestamp"`
}
