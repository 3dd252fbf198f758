package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the monitor configuration loaded from YAML.
type Config struct {
	// StateDir is where findings, exceptions, dispatch records, agent
	// logs, the performance log and the event index live.
	StateDir string `yaml:"state_dir"`

	// IssueThreshold is the per-cycle issue total at or above which the
	// escalation policy dispatches remediation.
	IssueThreshold int `yaml:"issue_threshold"`

	// MaxConsecutiveFailures is the crash count that triggers the long
	// recovery sleep.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	// MinDelay and MaxDelay clamp the adaptive inter-cycle delay.
	// Durations use time.ParseDuration syntax, e.g. "5s", "5m".
	MinDelay string `yaml:"min_delay,omitempty"`
	MaxDelay string `yaml:"max_delay,omitempty"`

	Agent       AgentConfig       `yaml:"agent"`
	Health      HealthConfig      `yaml:"health"`
	Service     ServiceConfig     `yaml:"service"`
	Performance PerformanceConfig `yaml:"performance"`
}

// AgentConfig configures how the external agent is launched.
type AgentConfig struct {
	// Command is the agent executable, resolved via PATH.
	Command string `yaml:"command"`

	// Args are prepended before the task text.
	Args []string `yaml:"args,omitempty"`
}

// HealthConfig configures the health sampler's probes.
type HealthConfig struct {
	// CriticalProcesses must each match at least one running process.
	CriticalProcesses []string `yaml:"critical_processes,omitempty"`

	// DisplayCommand checks the display subsystem (default "xset q").
	DisplayCommand string   `yaml:"display_command,omitempty"`
	DisplayArgs    []string `yaml:"display_args,omitempty"`

	MaxLoad          float64 `yaml:"max_load,omitempty"`
	MaxMemoryPercent float64 `yaml:"max_memory_percent,omitempty"`
}

// ServiceConfig configures the service sampler's probes.
type ServiceConfig struct {
	// AgentProcessMatch is the substring that identifies agent-like
	// processes for the overflow check.
	AgentProcessMatch string `yaml:"agent_process_match,omitempty"`

	// AgentBound is the maximum tolerated count of agent-like processes.
	AgentBound int `yaml:"agent_bound,omitempty"`

	// RequiredDirs must all exist as directories.
	RequiredDirs []string `yaml:"required_dirs,omitempty"`
}

// PerformanceConfig configures the performance sampler cadences.
type PerformanceConfig struct {
	// Every is the cycle cadence: the sampler runs on every Every-th
	// cycle.
	Every int `yaml:"every,omitempty"`

	// TrendEvery dispatches trend analysis at every TrendEvery-th
	// cumulative sample.
	TrendEvery int `yaml:"trend_every,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		StateDir:               "/var/lib/patrol",
		IssueThreshold:         3,
		MaxConsecutiveFailures: 5,
		MinDelay:               "5s",
		MaxDelay:               "5m",
		Agent: AgentConfig{
			Command: "claude",
		},
		Health: HealthConfig{
			DisplayCommand:   "xset",
			DisplayArgs:      []string{"q"},
			MaxLoad:          4.0,
			MaxMemoryPercent: 90,
		},
		Service: ServiceConfig{
			AgentProcessMatch: "claude",
			AgentBound:        5,
		},
		Performance: PerformanceConfig{
			Every:      5,
			TrendEvery: 10,
		},
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parsing YAML: %w", err)
	}
	return config, nil
}

// Validate checks the configuration and returns the parsed delay bounds.
func (c *Config) Validate() (minDelay, maxDelay time.Duration, err error) {
	if c.StateDir == "" {
		return 0, 0, fmt.Errorf("state_dir is required")
	}
	if c.IssueThreshold < 1 {
		return 0, 0, fmt.Errorf("issue_threshold must be at least 1, got %d", c.IssueThreshold)
	}
	if c.MaxConsecutiveFailures < 1 {
		return 0, 0, fmt.Errorf("max_consecutive_failures must be at least 1, got %d", c.MaxConsecutiveFailures)
	}
	if c.Agent.Command == "" {
		return 0, 0, fmt.Errorf("agent command is required")
	}
	if c.Performance.Every < 1 {
		return 0, 0, fmt.Errorf("performance cadence must be at least 1, got %d", c.Performance.Every)
	}

	minDelay, err = time.ParseDuration(c.MinDelay)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid min_delay %q: %w", c.MinDelay, err)
	}
	maxDelay, err = time.ParseDuration(c.MaxDelay)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid max_delay %q: %w", c.MaxDelay, err)
	}
	if minDelay <= 0 || maxDelay < minDelay {
		return 0, 0, fmt.Errorf("delay bounds [%s, %s] are not a valid range", c.MinDelay, c.MaxDelay)
	}
	return minDelay, maxDelay, nil
}
