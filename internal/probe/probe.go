// Package probe implements single host/service health checks. A probe
// reports at most one finding per pass; a probe whose required tool or
// data source is absent reports "skipped", which is not a finding.
package probe

import (
	"context"
	"errors"

	"github.com/patrolhq/patrol/internal/types"
)

// ErrSkipped indicates the probe could not run because its data source or
// tool is unavailable on this host. Skipped is explicitly not an issue
// and must not be recorded as a finding. Check with errors.Is.
var ErrSkipped = errors.New("probe: skipped, tool unavailable")

// Probe executes one health check.
//
// Check returns (finding, nil) when a problem was observed, (nil, nil)
// when the check passed, and (nil, err) on failure. An err wrapping
// ErrSkipped means the probe could not measure; any other error is a
// probe crash and propagates to the enclosing sampler.
type Probe interface {
	// Name returns the unique identifier for this probe.
	Name() string

	// Check runs the probe once.
	Check(ctx context.Context) (*types.Finding, error)
}

// Skipped reports whether err marks a skipped probe.
func Skipped(err error) bool {
	return errors.Is(err, ErrSkipped)
}
