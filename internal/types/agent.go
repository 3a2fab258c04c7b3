package types

import "time"

// Agent represents a monitored host's reporting process
type Agent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	UserID    string      `json:"userId"`
	APIKey    string      `json:"apiKey,omitempty"`
	Secret    string      `json:"secret,omitempty"`
	Status    AgentStatus `json:"status"`
	LastSeen  time.Time   `json:"lastSeen"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	// Applications is populated on detail and dashboard reads
	Applications []*Application `json:"applications,omitempty"`
}

// AgentStatus represents the current status of an agent
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusOffline AgentStatus = "offline"
)

// Valid reports whether the status is a known agent status
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusOnline, AgentStatusOffline:
		return true
	}
	return false
}

// Redact clears the credential pair before the agent leaves the API.
// Credentials are returned exactly once, at registration time.
func (a *Agent) Redact() *Agent {
	a.APIKey = ""
	a.Secret = ""
	return a
}

// AgentOverview represents an agent row on the dashboard
type AgentOverview struct {
	Agent
	ApplicationCount int `json:"applicationCount"`
	DowntimeCount    int `json:"downtimeCount"`
}
