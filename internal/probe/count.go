package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// CountThreshold checks a counted quantity against an upper bound.
// The counter is injected so callers can count anything: matching
// processes, queue entries, open files.
type CountThreshold struct {
	// Label names the counted quantity (e.g., "agent processes")
	Label string
	// Max is the highest acceptable count
	Max int
	// Count produces the current value; sysinfo.ErrUnavailable → skipped
	Count func(ctx context.Context) (int, error)
	// Severity for an exceeded bound; defaults to medium
	Severity types.Severity
}

func (c *CountThreshold) Name() string {
	return fmt.Sprintf("count-threshold[%s]", c.Label)
}

func (c *CountThreshold) Check(ctx context.Context) (*types.Finding, error) {
	if c.Count == nil {
		return nil, fmt.Errorf("%s: no counter configured", c.Name())
	}

	count, err := c.Count(ctx)
	if err != nil {
		if errors.Is(err, sysinfo.ErrUnavailable) {
			return nil, fmt.Errorf("%s: %w", c.Name(), ErrSkipped)
		}
		return nil, fmt.Errorf("counting %s: %w", c.Label, err)
	}

	if count <= c.Max {
		return nil, nil
	}

	severity := c.Severity
	if severity == "" {
		severity = types.SeverityMedium
	}

	return &types.Finding{
		Type:        "count_exceeded",
		Severity:    severity,
		Description: fmt.Sprintf("%s count %d exceeds bound %d", c.Label, count, c.Max),
	}, nil
}
