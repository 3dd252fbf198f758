package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patrol.yaml")
	content := `
state_dir: /tmp/patrol-test
issue_threshold: 5
min_delay: "2s"
agent:
  command: my-agent
  args: ["--headless"]
health:
  critical_processes: [sshd, crond]
  max_load: 8.0
service:
  agent_process_match: my-agent
  required_dirs: [/srv/app]
performance:
  every: 3
  trend_every: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/patrol-test", cfg.StateDir)
	assert.Equal(t, 5, cfg.IssueThreshold)
	assert.Equal(t, "my-agent", cfg.Agent.Command)
	assert.Equal(t, []string{"--headless"}, cfg.Agent.Args)
	assert.Equal(t, []string{"sshd", "crond"}, cfg.Health.CriticalProcesses)
	assert.Equal(t, 8.0, cfg.Health.MaxLoad)
	assert.Equal(t, 3, cfg.Performance.Every)
	assert.Equal(t, 20, cfg.Performance.TrendEvery)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 5, cfg.MaxConsecutiveFailures)
	assert.Equal(t, "5m", cfg.MaxDelay)
	assert.Equal(t, "xset", cfg.Health.DisplayCommand)

	minDelay, maxDelay, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, minDelay)
	assert.Equal(t, 5*time.Minute, maxDelay)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing state dir", func(c *Config) { c.StateDir = "" }, true},
		{"zero threshold", func(c *Config) { c.IssueThreshold = 0 }, true},
		{"zero failure limit", func(c *Config) { c.MaxConsecutiveFailures = 0 }, true},
		{"missing agent command", func(c *Config) { c.Agent.Command = "" }, true},
		{"bad min delay", func(c *Config) { c.MinDelay = "soon" }, true},
		{"inverted bounds", func(c *Config) { c.MinDelay = "10m"; c.MaxDelay = "1s" }, true},
		{"zero performance cadence", func(c *Config) { c.Performance.Every = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, _, err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
