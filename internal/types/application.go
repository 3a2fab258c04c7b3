package types

import "time"

// Application represents a named process-on-a-port monitored by an agent.
// Applications are created by the agent at startup and are immutable
// afterwards; there is no update path.
type Application struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agentId"`
	Name        string    `json:"name"`
	Port        int       `json:"port"`
	ProcessName string    `json:"processName"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
