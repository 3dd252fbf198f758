// Package sampler groups probes into named passes and aggregates their
// results into findings records. A pass isolates failures at probe
// granularity: one probe crashing never prevents the remaining probes in
// the same pass from running.
package sampler

import (
	"context"
	"fmt"
	"os"

	"github.com/patrolhq/patrol/internal/probe"
	"github.com/patrolhq/patrol/internal/types"
)

// Sampler runs one named pass.
//
// Sample returns a findings record when the pass ran, even if it found
// issues; a non-nil error means the whole pass crashed. Callers must
// treat these two outcomes differently: a pass with findings is healthy
// operation, a crashed pass is an operational failure of the monitor.
type Sampler interface {
	// Name returns the pass name ("health", "service", "performance").
	Name() string

	// Sample runs the pass once.
	Sample(ctx context.Context) (*types.FindingsRecord, error)
}

// Escalator is implemented by samplers whose findings escalate
// immediately, bypassing the shared issue-count threshold. The monitor
// calls Escalate after the findings record is durable.
type Escalator interface {
	// Escalate dispatches per-finding and returns how many dispatches
	// were launched.
	Escalate(ctx context.Context, rec *types.FindingsRecord, recordPath string) int
}

// runProbes executes probes in declared order. A skipped probe
// contributes nothing; a crashing probe is logged and the pass
// continues. When the pass found issues, a trailing summary entry is
// appended (excluded from the record's issue count).
func runProbes(ctx context.Context, samplerName string, probes []probe.Probe) []types.Finding {
	var findings []types.Finding

	for _, p := range probes {
		finding, err := checkProbe(ctx, p)
		if err != nil {
			if probe.Skipped(err) {
				fmt.Printf("%s: %s skipped (tool unavailable)\n", samplerName, p.Name())
				continue
			}
			// Probe crash: surface it, keep the pass going
			fmt.Fprintf(os.Stderr, "Warning: %s: probe %s failed: %v\n", samplerName, p.Name(), err)
			continue
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	if len(findings) > 0 {
		findings = append(findings, types.Finding{
			Type:        types.FindingTypeSummary,
			Severity:    types.SeverityLow,
			Description: fmt.Sprintf("%d issue(s) in %s pass", len(findings), samplerName),
		})
	}

	return findings
}

// checkProbe runs a single probe with panic containment.
func checkProbe(ctx context.Context, p probe.Probe) (finding *types.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			finding = nil
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return p.Check(ctx)
}
