package probe

import (
	"context"
	"fmt"

	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// LoadThreshold checks the one-minute load average against a ceiling.
type LoadThreshold struct {
	// Max is the highest acceptable one-minute load average
	Max float64
	// ProcRoot overrides the procfs mount point (tests); default /proc
	ProcRoot string
}

func (l *LoadThreshold) Name() string {
	return "load-threshold"
}

func (l *LoadThreshold) Check(ctx context.Context) (*types.Finding, error) {
	procRoot := l.ProcRoot
	if procRoot == "" {
		procRoot = sysinfo.DefaultProcRoot
	}

	load, err := sysinfo.LoadAverage(procRoot)
	if err != nil {
		if err == sysinfo.ErrUnavailable {
			return nil, fmt.Errorf("%s: %w", l.Name(), ErrSkipped)
		}
		return nil, fmt.Errorf("reading load average: %w", err)
	}

	if load <= l.Max {
		return nil, nil
	}

	severity := types.SeverityHigh
	if load >= 2*l.Max {
		severity = types.SeverityCritical
	}

	return &types.Finding{
		Type:        "high_load",
		Severity:    severity,
		Description: fmt.Sprintf("load average %.2f exceeds threshold %.2f", load, l.Max),
	}, nil
}
