package sampler

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/patrolhq/patrol/internal/dispatch"
	"github.com/patrolhq/patrol/internal/probe"
	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// DefaultAgentBound is the highest acceptable number of concurrently
// running agent processes before the service pass flags an overflow.
const DefaultAgentBound = 5

// ServiceConfig configures the service pass.
type ServiceConfig struct {
	// AgentProcessMatch is the cmdline substring identifying agent
	// processes for the overflow probe
	AgentProcessMatch string
	// AgentBound is the overflow threshold (default DefaultAgentBound)
	AgentBound int
	// RequiredDirs must each exist (state dir and friends)
	RequiredDirs []string
	// ProcRoot overrides the procfs mount point (tests)
	ProcRoot string
}

// Service samples the monitor's own operational substrate: agent-process
// overflow and required state directories.
//
// Unlike health findings, every service finding triggers an immediate
// dispatch of its own, bypassing the shared threshold. The asymmetry is
// intentional: service issues block the monitor's ability to operate, so
// they escalate without waiting for the aggregate count.
type Service struct {
	probes     []probe.Probe
	dispatcher dispatch.Dispatcher
}

// NewService builds the service pass from config.
func NewService(cfg ServiceConfig, dispatcher dispatch.Dispatcher) *Service {
	bound := cfg.AgentBound
	if bound == 0 {
		bound = DefaultAgentBound
	}
	procRoot := cfg.ProcRoot
	if procRoot == "" {
		procRoot = sysinfo.DefaultProcRoot
	}
	match := cfg.AgentProcessMatch

	probes := []probe.Probe{
		&probe.CountThreshold{
			Label:    "agent processes",
			Max:      bound,
			Severity: types.SeverityHigh,
			Count: func(ctx context.Context) (int, error) {
				if match == "" {
					return 0, sysinfo.ErrUnavailable
				}
				return sysinfo.CountMatching(procRoot, func(cmdline string) bool {
					return strings.Contains(cmdline, match)
				})
			},
		},
	}
	for _, dir := range cfg.RequiredDirs {
		probes = append(probes, &probe.DirectoryPresence{Path: dir})
	}

	return &Service{probes: probes, dispatcher: dispatcher}
}

func (s *Service) Name() string { return "service" }

// Sample runs every service probe in order and aggregates the findings.
func (s *Service) Sample(ctx context.Context) (*types.FindingsRecord, error) {
	findings := runProbes(ctx, s.Name(), s.probes)
	return types.NewFindingsRecord(s.Name(), findings), nil
}

// Escalate dispatches one remediation per finding, immediately and
// independently of the cycle's aggregate threshold. A failed dispatch is
// logged and does not block the remaining findings.
func (s *Service) Escalate(ctx context.Context, rec *types.FindingsRecord, recordPath string) int {
	dispatched := 0
	for _, finding := range rec.Findings {
		if finding.Type == types.FindingTypeSummary {
			continue
		}

		req := dispatch.Request{
			Kind:          types.DispatchRemediation,
			Context:       fmt.Sprintf("service pass: %s", finding.Type),
			ReferenceFile: recordPath,
			Task:          dispatch.ServiceIssueTask(finding, recordPath),
		}
		if _, err := s.dispatcher.Dispatch(ctx, req); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: service escalation dispatch failed for %s: %v\n", finding.Type, err)
			continue
		}
		dispatched++
	}
	return dispatched
}
