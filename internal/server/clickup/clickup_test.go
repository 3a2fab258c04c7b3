package clickup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"watcher/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testDowntime(severity types.Severity) *types.Downtime {
	return &types.Downtime{
		ID:          "dt-1",
		StartTime:   time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Reason:      "Process not found",
		Severity:    severity,
		Application: &types.Application{Name: "api"},
		Agent:       &types.Agent{Name: "web-01"},
	}
}

func TestCreateTask(t *testing.T) {
	var got taskRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/list/list-1/task", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-42"})
	}))
	defer server.Close()

	client := NewClient(Config{
		Token:   "secret-token",
		ListID:  "list-1",
		BaseURL: server.URL,
	}, zaptest.NewLogger(t))

	taskID, err := client.CreateTask(context.Background(), testDowntime(types.SeverityCritical))
	require.NoError(t, err)
	assert.Equal(t, "task-42", taskID)
	assert.Equal(t, "secret-token", gotAuth)
	assert.Equal(t, "[CRITICAL] api is DOWN", got.Name)
	assert.Equal(t, 1, got.Priority)
	assert.Contains(t, got.Description, "Process not found")
	assert.Contains(t, got.Description, "web-01")
}

func TestCreateTaskServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err":"Team not authorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{
		Token:   "bad-token",
		ListID:  "list-1",
		BaseURL: server.URL,
	}, zaptest.NewLogger(t))

	_, err := client.CreateTask(context.Background(), testDowntime(types.SeverityHigh))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSeverityPriority(t *testing.T) {
	assert.Equal(t, 1, severityPriority(types.SeverityCritical))
	assert.Equal(t, 2, severityPriority(types.SeverityHigh))
	assert.Equal(t, 3, severityPriority(types.SeverityMedium))
	assert.Equal(t, 3, severityPriority(types.SeverityLow))
}

func TestEnabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.False(t, NewClient(Config{}, logger).Enabled())
	assert.False(t, NewClient(Config{Token: "t"}, logger).Enabled())
	assert.True(t, NewClient(Config{Token: "t", ListID: "l"}, logger).Enabled())
}
