package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// ProcessPresence checks that a named process is running by scanning
// procfs cmdlines for a substring match.
type ProcessPresence struct {
	// Process is the substring to look for in process cmdlines
	Process string
	// ProcRoot overrides the procfs mount point (tests); default /proc
	ProcRoot string
}

func (p *ProcessPresence) Name() string {
	return fmt.Sprintf("process-presence[%s]", p.Process)
}

func (p *ProcessPresence) Check(ctx context.Context) (*types.Finding, error) {
	procRoot := p.ProcRoot
	if procRoot == "" {
		procRoot = sysinfo.DefaultProcRoot
	}

	count, err := sysinfo.CountMatching(procRoot, func(cmdline string) bool {
		return strings.Contains(cmdline, p.Process)
	})
	if err != nil {
		if err == sysinfo.ErrUnavailable {
			return nil, fmt.Errorf("%s: %w", p.Name(), ErrSkipped)
		}
		return nil, fmt.Errorf("scanning processes for %s: %w", p.Process, err)
	}

	if count == 0 {
		return &types.Finding{
			Type:        "process_missing",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("required process %q is not running", p.Process),
		}, nil
	}
	return nil, nil
}
