package sampler

import (
	"context"

	"github.com/patrolhq/patrol/internal/probe"
	"github.com/patrolhq/patrol/internal/types"
)

// HealthConfig configures the health pass.
type HealthConfig struct {
	// CriticalProcesses must each be running (cmdline substring match)
	CriticalProcesses []string
	// DisplayCommand checks the display subsystem (default: xset q);
	// hosts without the tool skip the probe
	DisplayCommand string
	// DisplayArgs are passed to DisplayCommand
	DisplayArgs []string
	// MaxLoad is the one-minute load average ceiling (default 4.0)
	MaxLoad float64
	// MaxMemoryPercent is the used-memory ceiling (default 90)
	MaxMemoryPercent float64
	// ProcRoot overrides the procfs mount point (tests)
	ProcRoot string
}

// Health samples general host health: process presence, display
// subsystem, load average, memory usage. Its findings feed the shared
// threshold-gated escalation policy.
type Health struct {
	probes []probe.Probe
}

// NewHealth builds the health pass from config.
func NewHealth(cfg HealthConfig) *Health {
	if cfg.DisplayCommand == "" {
		cfg.DisplayCommand = "xset"
		cfg.DisplayArgs = []string{"q"}
	}
	if cfg.MaxLoad == 0 {
		cfg.MaxLoad = 4.0
	}
	if cfg.MaxMemoryPercent == 0 {
		cfg.MaxMemoryPercent = 90
	}

	// Fixed probe order: processes, display, load, memory
	var probes []probe.Probe
	for _, proc := range cfg.CriticalProcesses {
		probes = append(probes, &probe.ProcessPresence{Process: proc, ProcRoot: cfg.ProcRoot})
	}
	probes = append(probes,
		&probe.CommandHealth{Subsystem: "display", Command: cfg.DisplayCommand, Args: cfg.DisplayArgs},
		&probe.LoadThreshold{Max: cfg.MaxLoad, ProcRoot: cfg.ProcRoot},
		&probe.MemoryThreshold{MaxPercent: cfg.MaxMemoryPercent, ProcRoot: cfg.ProcRoot},
	)

	return &Health{probes: probes}
}

func (h *Health) Name() string { return "health" }

// Sample runs every health probe in order and aggregates the findings.
func (h *Health) Sample(ctx context.Context) (*types.FindingsRecord, error) {
	findings := runProbes(ctx, h.Name(), h.probes)
	return types.NewFindingsRecord(h.Name(), findings), nil
}
