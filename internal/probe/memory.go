package probe

import (
	"context"
	"fmt"

	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// MemoryThreshold checks used-memory percentage against a ceiling.
type MemoryThreshold struct {
	// MaxPercent is the highest acceptable used-memory percentage
	MaxPercent float64
	// ProcRoot overrides the procfs mount point (tests); default /proc
	ProcRoot string
}

func (m *MemoryThreshold) Name() string {
	return "memory-threshold"
}

func (m *MemoryThreshold) Check(ctx context.Context) (*types.Finding, error) {
	procRoot := m.ProcRoot
	if procRoot == "" {
		procRoot = sysinfo.DefaultProcRoot
	}

	pct, err := sysinfo.MemoryPercent(procRoot)
	if err != nil {
		if err == sysinfo.ErrUnavailable {
			return nil, fmt.Errorf("%s: %w", m.Name(), ErrSkipped)
		}
		return nil, fmt.Errorf("reading memory usage: %w", err)
	}

	if pct <= m.MaxPercent {
		return nil, nil
	}

	severity := types.SeverityHigh
	if pct >= 95 {
		severity = types.SeverityCritical
	}

	return &types.Finding{
		Type:        "high_memory",
		Severity:    severity,
		Description: fmt.Sprintf("memory usage %.1f%% exceeds threshold %.1f%%", pct, m.MaxPercent),
	}, nil
}
