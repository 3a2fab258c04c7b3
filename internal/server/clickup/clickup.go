// Package clickup creates escalation tasks for application downtimes.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watcher/internal/types"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.clickup.com/api/v2"

// Config represents the ClickUp integration configuration
type Config struct {
	Token       string        `mapstructure:"token"`
	WorkspaceID string        `mapstructure:"workspace_id"`
	ListID      string        `mapstructure:"list_id"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Client talks to the ClickUp task API
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a ClickUp client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Enabled reports whether the integration is configured
func (c *Client) Enabled() bool {
	return c.cfg.Token != "" && c.cfg.ListID != ""
}

// severityPriority maps downtime severity to ClickUp task priority
func severityPriority(s types.Severity) int {
	switch s {
	case types.SeverityCritical:
		return 1 // urgent
	case types.SeverityHigh:
		return 2 // high
	default:
		return 3 // normal
	}
}

type taskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

type taskResponse struct {
	ID string `json:"id"`
}

// CreateTask opens a ClickUp task for the downtime and returns the task id.
// The downtime must carry its application and agent context.
func (c *Client) CreateTask(ctx context.Context, downtime *types.Downtime) (string, error) {
	title := fmt.Sprintf("[%s] %s is DOWN",
		strings.ToUpper(string(downtime.Severity)), downtime.Application.Name)

	description := fmt.Sprintf(
		"Application: %s\nAgent: %s\nStarted: %s\nReason: %s",
		downtime.Application.Name,
		downtime.Agent.Name,
		downtime.StartTime.Format(time.RFC3339),
		downtime.Reason)

	body, err := json.Marshal(taskRequest{
		Name:        title,
		Description: description,
		Priority:    severityPriority(downtime.Severity),
	})
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	url := fmt.Sprintf("%s/list/%s/task", c.cfg.BaseURL, c.cfg.ListID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("clickup returned status %d: %s", resp.StatusCode, string(raw))
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if task.ID == "" {
		return "", fmt.Errorf("clickup response missing task id")
	}

	c.logger.Info("created escalation task",
		zap.String("task_id", task.ID),
		zap.String("application", downtime.Application.Name),
		zap.String("severity", string(downtime.Severity)))

	return task.ID, nil
}
