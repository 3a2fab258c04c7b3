package types

import "time"

// Severity represents downtime severity
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is a known severity level
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Downtime represents one continuous interval during which an application's
// process was not found. At most one unresolved downtime exists per
// application; concurrent reports attach to the open record.
type Downtime struct {
	ID            string     `json:"id"`
	AgentID       string     `json:"agentId"`
	ApplicationID string     `json:"applicationId"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Severity      Severity   `json:"severity"`
	Resolved      bool       `json:"resolved"`
	ClickupTaskID string     `json:"clickupTaskId,omitempty"`

	// Embedded context, populated on reads that join
	Application *Application `json:"application,omitempty"`
	Agent       *Agent       `json:"agent,omitempty"`
}

// ClickupLog is an append-only audit record of an external ticket creation
type ClickupLog struct {
	ID              int64     `json:"id"`
	TaskID          string    `json:"taskId"`
	ApplicationName string    `json:"applicationName"`
	AgentName       string    `json:"agentName"`
	Message         string    `json:"message"`
	Success         bool      `json:"success"`
	CreatedAt       time.Time `json:"createdAt"`
}
