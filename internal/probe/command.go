package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/patrolhq/patrol/internal/types"
)

// commandTimeout bounds a single check command so a hung tool cannot
// stall the whole pass.
const commandTimeout = 15 * time.Second

// CommandHealth runs an external check command and treats a non-zero
// exit as an unhealthy subsystem. A command that is not installed on
// this host yields skipped, not a finding.
type CommandHealth struct {
	// Subsystem names what the command checks (e.g., "display")
	Subsystem string
	// Command is the executable to run
	Command string
	// Args are passed to the command
	Args []string
	// Severity for a failed check; defaults to medium
	Severity types.Severity
}

func (c *CommandHealth) Name() string {
	return fmt.Sprintf("command-health[%s]", c.Subsystem)
}

func (c *CommandHealth) Check(ctx context.Context) (*types.Finding, error) {
	if _, err := exec.LookPath(c.Command); err != nil {
		return nil, fmt.Errorf("%s: %q not on PATH: %w", c.Name(), c.Command, ErrSkipped)
	}

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Command, c.Args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil, nil
	}

	if _, ok := err.(*exec.ExitError); !ok {
		// Failed to start at all; treat like an unavailable tool
		return nil, fmt.Errorf("%s: starting %q: %v: %w", c.Name(), c.Command, err, ErrSkipped)
	}

	severity := c.Severity
	if severity == "" {
		severity = types.SeverityMedium
	}

	detail := strings.TrimSpace(string(output))
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	desc := fmt.Sprintf("%s check %q failed", c.Subsystem, c.Command)
	if detail != "" {
		desc = fmt.Sprintf("%s: %s", desc, detail)
	}

	return &types.Finding{
		Type:        fmt.Sprintf("%s_unhealthy", c.Subsystem),
		Severity:    severity,
		Description: desc,
	}, nil
}
