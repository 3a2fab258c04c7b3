package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("api:8080:node")
	require.NoError(t, err)
	assert.Equal(t, "api", target.Name)
	assert.Equal(t, 8080, target.Port)
	assert.Equal(t, "node", target.ProcessName)

	for _, raw := range []string{"", "api", "api:8080", "api:eighty:node", ":8080:node", "api:8080:"} {
		_, err := ParseTarget(raw)
		assert.Error(t, err, "expected error for %q", raw)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
agent:
  server_url: http://localhost:8080
  id: agent-1
  api_key: key-1
  secret: secret-1
monitor:
  targets:
    - api:8080:node
    - worker:9090:python
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Agent.ServerURL)
	assert.NotEmpty(t, cfg.Agent.Name, "name defaults to hostname")
	assert.Equal(t, 30*time.Second, cfg.Monitor.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.Monitor.CollectInterval)
	assert.Equal(t, 10*time.Second, cfg.Monitor.HTTPTimeout)

	targets, err := cfg.ParsedTargets()
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "worker", targets[1].Name)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
agent:
  server_url: http://localhost:8080
  id: agent-1
  api_key: key-1
  secret: secret-1
`)

	t.Setenv("WATCHER_API_KEY", "env-key")
	t.Setenv("WATCHER_MONITOR_TARGETS", "api:8080:node,db:5432:postgres")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Agent.APIKey)

	targets, err := cfg.ParsedTargets()
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "api", targets[0].Name)
	assert.Equal(t, "db", targets[1].Name)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing server url", "agent:\n  id: a\n  api_key: k\n  secret: s\n"},
		{"missing id", "agent:\n  server_url: http://x\n  api_key: k\n  secret: s\n"},
		{"missing credentials", "agent:\n  server_url: http://x\n  id: a\n"},
		{"bad target", "agent:\n  server_url: http://x\n  id: a\n  api_key: k\n  secret: s\nmonitor:\n  targets: [broken]\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}
