// Package client implements the agent's HTTP client for the server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watcher/internal/agent/config"
	"watcher/internal/types"

	"go.uber.org/zap"
)

// Client talks to the server's agent-scoped API
type Client struct {
	baseURL string
	agentID string
	apiKey  string
	secret  string

	client *http.Client
	logger *zap.Logger
}

// NewClient creates an API client for the configured agent identity
func NewClient(cfg config.AgentConfig, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		agentID: cfg.ID,
		apiKey:  cfg.APIKey,
		secret:  cfg.Secret,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// post sends an authenticated JSON request and decodes the response into out
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/agents/%s%s", c.baseURL, c.agentID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Secret", c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// RegisterApplication registers a monitoring target with the server
func (c *Client) RegisterApplication(ctx context.Context, target config.Target, url string) (*types.Application, error) {
	payload := map[string]any{
		"name":        target.Name,
		"port":        target.Port,
		"processName": target.ProcessName,
		"url":         url,
	}

	var app types.Application
	if err := c.post(ctx, "/applications", payload, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Heartbeat posts a liveness signal
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.post(ctx, "/heartbeat", map[string]string{"status": "online"}, nil)
}

// SubmitMetric posts an observation for an application
func (c *Client) SubmitMetric(ctx context.Context, applicationID string, cpu, memory, uptime float64) error {
	payload := map[string]any{
		"applicationId": applicationID,
		"cpu":           cpu,
		"memory":        memory,
		"uptime":        uptime,
	}
	return c.post(ctx, "/metrics", payload, nil)
}

// ReportDowntime posts a process-not-found report for an application
func (c *Client) ReportDowntime(ctx context.Context, applicationID, reason string, severity types.Severity) error {
	payload := map[string]any{
		"applicationId": applicationID,
		"reason":        reason,
		"severity":      string(severity),
	}
	return c.post(ctx, "/downtimes", payload, nil)
}
