package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"watcher/internal/server/clickup"
	"watcher/internal/server/storage"
	"watcher/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupService(t *testing.T, escalator *clickup.Client) *Service {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store, err := storage.NewStorage(&storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "service_test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewService(store, escalator, Config{}, nil, logger)
}

func registerFixture(t *testing.T, svc *Service) (*types.Agent, *types.Application) {
	t.Helper()
	ctx := context.Background()

	agent, err := svc.RegisterAgent(ctx, "web1", "user-1")
	require.NoError(t, err)

	app, err := svc.RegisterApplication(ctx, agent.ID, "api", 8080, "node", "http://localhost:8080")
	require.NoError(t, err)

	return agent, app
}

func TestRegisterAgentCredentialsUnique(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	keys := map[string]bool{}
	secrets := map[string]bool{}
	for i := 0; i < 20; i++ {
		agent, err := svc.RegisterAgent(ctx, "agent", "user-1")
		require.NoError(t, err)
		require.NotEmpty(t, agent.APIKey)
		require.NotEmpty(t, agent.Secret)
		assert.False(t, keys[agent.APIKey], "api key reused")
		assert.False(t, secrets[agent.Secret], "secret reused")
		keys[agent.APIKey] = true
		secrets[agent.Secret] = true
	}
}

func TestAuthenticate(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	agent, _ := registerFixture(t, svc)

	got, err := svc.Authenticate(ctx, agent.APIKey, agent.Secret)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)

	_, err = svc.Authenticate(ctx, agent.APIKey, "wrong-secret")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "unknown-key", agent.Secret)
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
}

func TestHeartbeat(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	agent, _ := registerFixture(t, svc)
	assert.Equal(t, types.AgentStatusOffline, agent.Status)

	first, err := svc.Heartbeat(ctx, agent.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.AgentStatusOnline, first.Status)
	assert.Empty(t, first.APIKey, "credentials must be redacted")

	time.Sleep(10 * time.Millisecond)
	second, err := svc.Heartbeat(ctx, agent.ID, types.AgentStatusOnline)
	require.NoError(t, err)
	assert.False(t, second.LastSeen.Before(first.LastSeen))

	_, err = svc.Heartbeat(ctx, agent.ID, "degraded")
	assert.Error(t, err)

	_, err = svc.Heartbeat(ctx, "no-such-agent", "")
	assert.ErrorIs(t, err, types.ErrAgentNotFound)
}

func TestSubmitMetric(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	agent, app := registerFixture(t, svc)
	other, err := svc.RegisterAgent(ctx, "web2", "user-1")
	require.NoError(t, err)

	metric := &types.Metric{
		ApplicationID: app.ID,
		CPU:           12.5,
		Memory:        256,
		Uptime:        1.7e9,
	}
	saved, err := svc.SubmitMetric(ctx, agent.ID, metric)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, saved.AgentID)
	assert.False(t, saved.Timestamp.IsZero())

	// a metric submission is a liveness signal
	detail, err := svc.AgentDetail(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AgentStatusOnline, detail.Status)

	// an agent cannot report against another agent's application
	_, err = svc.SubmitMetric(ctx, other.ID, &types.Metric{ApplicationID: app.ID})
	assert.ErrorIs(t, err, types.ErrApplicationNotFound)

	metrics, err := svc.Metrics(ctx, app.ID, 0)
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
}

func TestReportDowntimeWithoutEscalation(t *testing.T) {
	svc := setupService(t, clickup.NewClient(clickup.Config{}, zaptest.NewLogger(t)))
	ctx := context.Background()

	agent, app := registerFixture(t, svc)

	d, created, err := svc.ReportDowntime(ctx, agent.ID, app.ID, "", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, types.SeverityMedium, d.Severity)
	assert.Empty(t, d.ClickupTaskID)
	assert.False(t, d.Resolved)

	// a second report attaches to the open downtime
	again, created, err := svc.ReportDowntime(ctx, agent.ID, app.ID, "still down", types.SeverityHigh)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, d.ID, again.ID)
	assert.Equal(t, types.SeverityMedium, again.Severity)
}

func TestReportDowntimeEscalates(t *testing.T) {
	var calls int
	ticketing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-9"})
	}))
	defer ticketing.Close()

	escalator := clickup.NewClient(clickup.Config{
		Token:   "token",
		ListID:  "list-1",
		BaseURL: ticketing.URL,
	}, zaptest.NewLogger(t))

	svc := setupService(t, escalator)
	ctx := context.Background()

	agent, app := registerFixture(t, svc)

	d, created, err := svc.ReportDowntime(ctx, agent.ID, app.ID, "Process not found", types.SeverityCritical)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "task-9", d.ClickupTaskID)
	assert.Equal(t, 1, calls)

	// continuation reports do not escalate again
	_, created, err = svc.ReportDowntime(ctx, agent.ID, app.ID, "Process not found", types.SeverityCritical)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, calls)
}

func TestReportDowntimeSurvivesEscalationFailure(t *testing.T) {
	ticketing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer ticketing.Close()

	escalator := clickup.NewClient(clickup.Config{
		Token:   "token",
		ListID:  "list-1",
		BaseURL: ticketing.URL,
	}, zaptest.NewLogger(t))

	svc := setupService(t, escalator)
	ctx := context.Background()

	agent, app := registerFixture(t, svc)

	d, created, err := svc.ReportDowntime(ctx, agent.ID, app.ID, "", types.SeverityHigh)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, d.ClickupTaskID)
}

func TestResolveDowntimeIdempotent(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	agent, app := registerFixture(t, svc)

	d, _, err := svc.ReportDowntime(ctx, agent.ID, app.ID, "", "")
	require.NoError(t, err)

	resolved, err := svc.ResolveDowntime(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.EndTime)

	again, err := svc.ResolveDowntime(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, again.Resolved)
	assert.WithinDuration(t, *resolved.EndTime, *again.EndTime, time.Second)
}

func TestSummaryScenario(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	agent, app := registerFixture(t, svc)
	_, err := svc.Heartbeat(ctx, agent.ID, "")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalAgents)
	assert.Equal(t, 1, summary.OnlineAgents)
	assert.Equal(t, 1, summary.TotalApplications)
	assert.Zero(t, summary.ActiveDowntimes)

	d, _, err := svc.ReportDowntime(ctx, agent.ID, app.ID, "", types.SeverityCritical)
	require.NoError(t, err)

	summary, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ActiveDowntimes)

	_, err = svc.ResolveDowntime(ctx, d.ID)
	require.NoError(t, err)

	summary, err = svc.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.ActiveDowntimes)
}

func TestStalenessSweep(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store, err := storage.NewStorage(&storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "sweep_test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(store, nil, Config{
		OfflineThreshold: 50 * time.Millisecond,
		CheckInterval:    10 * time.Millisecond,
	}, nil, logger)

	ctx := context.Background()
	agent, err := svc.RegisterAgent(ctx, "web1", "user-1")
	require.NoError(t, err)
	_, err = svc.Heartbeat(ctx, agent.ID, "")
	require.NoError(t, err)

	svc.Start(ctx)
	defer svc.Stop()

	assert.Eventually(t, func() bool {
		got, err := store.GetAgent(ctx, agent.ID)
		return err == nil && got.Status == types.AgentStatusOffline
	}, 2*time.Second, 10*time.Millisecond)
}
