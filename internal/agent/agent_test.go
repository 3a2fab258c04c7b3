package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"watcher/internal/agent/client"
	"watcher/internal/agent/config"
	"watcher/internal/agent/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeProber returns a canned result per process name
type fakeProber struct {
	mu    sync.Mutex
	procs map[string]*probe.ProcessInfo
}

func (f *fakeProber) Find(_ context.Context, substring string) (*probe.ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.procs[substring]; ok {
		return info, nil
	}
	return nil, probe.ErrProcessNotFound
}

// fakeServer records agent API calls
type fakeServer struct {
	mu         sync.Mutex
	heartbeats int
	metrics    []map[string]any
	downtimes  []map[string]any
	apiKeys    []string
	server     *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/agents/agent-1/applications", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "app-" + req["name"].(string),
			"agentId":     "agent-1",
			"name":        req["name"],
			"processName": req["processName"],
		})
	})

	mux.HandleFunc("POST /api/agents/agent-1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.heartbeats++
		fs.apiKeys = append(fs.apiKeys, r.Header.Get("X-Api-Key"))
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "agent-1", "status": "online"})
	})

	mux.HandleFunc("POST /api/agents/agent-1/metrics", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fs.mu.Lock()
		fs.metrics = append(fs.metrics, req)
		fs.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(req)
	})

	mux.HandleFunc("POST /api/agents/agent-1/downtimes", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fs.mu.Lock()
		fs.downtimes = append(fs.downtimes, req)
		fs.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(req)
	})

	fs.server = httptest.NewServer(mux)
	t.Cleanup(fs.server.Close)
	return fs
}

func newTestAgent(t *testing.T, fs *fakeServer, prober probe.Prober, targets ...string) *Agent {
	t.Helper()

	cfg := &config.Config{
		Agent: config.AgentConfig{
			ServerURL: fs.server.URL,
			ID:        "agent-1",
			APIKey:    "key-1",
			Secret:    "secret-1",
			Name:      "web-01",
		},
		Monitor: config.MonitorConfig{
			Targets:           targets,
			HeartbeatInterval: 20 * time.Millisecond,
			CollectInterval:   20 * time.Millisecond,
			HTTPTimeout:       time.Second,
		},
	}

	logger := zaptest.NewLogger(t)
	cl := client.NewClient(cfg.Agent, cfg.Monitor.HTTPTimeout, logger)
	return NewAgent(cfg, cl, prober, logger)
}

func TestAgentReportsMetrics(t *testing.T) {
	fs := newFakeServer(t)
	prober := &fakeProber{procs: map[string]*probe.ProcessInfo{
		"node": {PID: 42, CPUPercent: 12.5, MemoryMB: 256},
	}}

	a := newTestAgent(t, fs, prober, "api:8080:node")
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	assert.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.heartbeats > 0 && len(fs.metrics) > 0
	}, 2*time.Second, 10*time.Millisecond)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, "key-1", fs.apiKeys[0])

	metric := fs.metrics[0]
	assert.Equal(t, "app-api", metric["applicationId"])
	assert.Equal(t, 12.5, metric["cpu"])
	assert.Equal(t, 256.0, metric["memory"])
	assert.Greater(t, metric["uptime"].(float64), 0.0)
	assert.Empty(t, fs.downtimes)
}

func TestAgentReportsDowntime(t *testing.T) {
	fs := newFakeServer(t)
	prober := &fakeProber{procs: map[string]*probe.ProcessInfo{}}

	a := newTestAgent(t, fs, prober, "api:8080:node")
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	assert.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return len(fs.downtimes) > 0
	}, 2*time.Second, 10*time.Millisecond)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	downtime := fs.downtimes[0]
	assert.Equal(t, "app-api", downtime["applicationId"])
	assert.Equal(t, "Process not found", downtime["reason"])
	assert.Equal(t, "high", downtime["severity"])
	assert.Empty(t, fs.metrics)
}

func TestAgentSkipsFailedRegistration(t *testing.T) {
	fs := newFakeServer(t)
	prober := &fakeProber{procs: map[string]*probe.ProcessInfo{
		"node": {PID: 1, CPUPercent: 1, MemoryMB: 1},
	}}

	// the fake server only serves agent-1 routes, so registration 404s
	a := newTestAgent(t, fs, prober, "api:8080:node")
	a.cfg.Agent.ID = "agent-2"
	a.client = client.NewClient(a.cfg.Agent, time.Second, zaptest.NewLogger(t))

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	// no targets registered, so no metrics ever flow
	time.Sleep(100 * time.Millisecond)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Empty(t, fs.metrics)
	assert.Empty(t, fs.downtimes)
}

func TestAgentStopCancelsSchedules(t *testing.T) {
	fs := newFakeServer(t)
	prober := &fakeProber{procs: map[string]*probe.ProcessInfo{}}

	a := newTestAgent(t, fs, prober, "api:8080:node")
	require.NoError(t, a.Start(context.Background()))
	a.Stop()

	fs.mu.Lock()
	before := fs.heartbeats
	fs.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, before, fs.heartbeats)
}
