package monitor

import (
	"context"
	"fmt"

	"github.com/patrolhq/patrol/internal/dispatch"
	"github.com/patrolhq/patrol/internal/sampler"
	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/types"
)

// runCycle executes one monitoring cycle: health and service sampling
// every cycle, performance on its own cadence, then the escalation
// policy over the cycle's issue total. Findings records are durable
// before the policy evaluates them. A returned error is a whole-cycle
// crash and drives the consecutive-failure counter.
func (m *Monitor) runCycle(ctx context.Context) (issues int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	m.state.cycleCount++
	cycle := m.state.cycleCount
	fmt.Printf("patrol: cycle %d starting\n", cycle)

	var records []*types.FindingsRecord
	var paths []string
	total := 0

	if rec, ok := m.exceptions.Run(ctx, m.health, cycle); ok {
		path, serr := m.store.SaveFindings(rec)
		if serr != nil {
			return 0, fmt.Errorf("persisting health findings: %w", serr)
		}
		records = append(records, rec)
		paths = append(paths, path)
		total += rec.IssueCount
	}

	if rec, ok := m.exceptions.Run(ctx, m.service, cycle); ok {
		path, serr := m.store.SaveFindings(rec)
		if serr != nil {
			return 0, fmt.Errorf("persisting service findings: %w", serr)
		}
		records = append(records, rec)
		paths = append(paths, path)
		total += rec.IssueCount

		// Service issues escalate immediately, one dispatch per
		// finding, on top of the shared threshold policy.
		if esc, isEsc := m.service.(sampler.Escalator); isEsc && rec.IssueCount > 0 {
			m.addDispatched(esc.Escalate(ctx, rec, path))
		}
	}

	if cycle%m.config.Performance.Every == 0 {
		// Contributes no issues; a crash here is contained like any
		// other sampler crash.
		m.exceptions.Run(ctx, m.performance, cycle)
	}

	if perr := m.applyEscalationPolicy(ctx, cycle, total, records, paths); perr != nil {
		return 0, perr
	}

	m.recordEvent(ctx, store.EventCycleCompleted, cycle, store.EventInfo,
		fmt.Sprintf("%d issue(s)", total), map[string]interface{}{"issues": total})
	return total, nil
}

// applyEscalationPolicy dispatches at most one remediation per cycle:
// at or above the threshold one request referencing every findings
// record of the cycle, below it a log line, at zero nothing.
func (m *Monitor) applyEscalationPolicy(ctx context.Context, cycle, total int, records []*types.FindingsRecord, paths []string) error {
	switch {
	case total == 0:
		return nil
	case total < m.config.IssueThreshold:
		fmt.Printf("patrol: cycle %d: %d issue(s), below threshold %d, logging only\n",
			cycle, total, m.config.IssueThreshold)
		return nil
	}

	task, err := dispatch.RemediationTask(records, total, paths[0])
	if err != nil {
		return fmt.Errorf("building remediation task: %w", err)
	}

	rec, err := m.dispatcher.Dispatch(ctx, dispatch.Request{
		Kind:          types.DispatchRemediation,
		Context:       fmt.Sprintf("cycle %d: %d issues at or above threshold %d", cycle, total, m.config.IssueThreshold),
		ReferenceFile: paths[0],
		Task:          task,
	})
	if err != nil {
		return fmt.Errorf("remediation dispatch: %w", err)
	}

	m.addDispatched(1)
	fmt.Printf("patrol: cycle %d: remediation dispatched (pid %d)\n", cycle, rec.PID)
	m.recordEvent(ctx, store.EventDispatched, cycle, store.EventWarning,
		fmt.Sprintf("remediation dispatched for %d issue(s)", total),
		map[string]interface{}{"dispatch_id": rec.ID, "pid": rec.PID})
	return nil
}
