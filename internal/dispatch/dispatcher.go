// Package dispatch launches the external autonomous agent as a detached
// background process. Dispatch is deliberately fire-and-forget: the agent
// may run for an unbounded, human-scale duration, so the monitor records
// the launch and never joins, polls, or cancels the process.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/types"
)

// Request describes one agent launch.
type Request struct {
	// Kind is diagnostic or remediation
	Kind types.DispatchKind
	// Context describes why the dispatch is happening
	Context string
	// ReferenceFile is the findings or exception artifact for the agent
	ReferenceFile string
	// Task is the free-text instruction for the agent
	Task string
}

// Dispatcher launches agent processes. Implementations must write the
// dispatch record durably before reporting a launch as successful.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*types.DispatchRecord, error)
}

// Config holds agent dispatcher configuration.
type Config struct {
	// Command is the agent executable (default: "claude")
	Command string
	// Args are passed before the task text
	Args []string
	// Store persists dispatch records and receives agent log files
	Store *store.Store
}

// AgentDispatcher spawns the configured agent command in its own session
// with output redirected to a per-dispatch log file.
type AgentDispatcher struct {
	command string
	args    []string
	store   *store.Store

	mu         sync.Mutex
	dispatched int
}

// New creates an agent dispatcher.
func New(cfg Config) (*AgentDispatcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	return &AgentDispatcher{
		command: command,
		args:    cfg.Args,
		store:   cfg.Store,
	}, nil
}

// Dispatch launches the agent and returns once the dispatch record is
// durable. The spawned process is never waited on; its exit status is
// unobserved by design.
func (d *AgentDispatcher) Dispatch(ctx context.Context, req Request) (*types.DispatchRecord, error) {
	if req.Task == "" {
		return nil, fmt.Errorf("task is required")
	}
	if req.Kind != types.DispatchDiagnostic && req.Kind != types.DispatchRemediation {
		return nil, fmt.Errorf("unsupported dispatch kind: %s", req.Kind)
	}

	dispatchID := uuid.New().String()

	logFile, err := os.Create(d.store.AgentLogPath(dispatchID))
	if err != nil {
		return nil, fmt.Errorf("creating agent log: %w", err)
	}
	defer logFile.Close()

	args := make([]string, 0, len(d.args)+1)
	args = append(args, d.args...)
	args = append(args, req.Task)

	// No CommandContext: the agent must outlive the monitor's cycle and
	// any context deadline the caller is operating under.
	cmd := exec.Command(d.command, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PATROL_DISPATCH_ID=%s", dispatchID),
		fmt.Sprintf("PATROL_DISPATCH_KIND=%s", req.Kind),
		fmt.Sprintf("PATROL_REFERENCE_FILE=%s", req.ReferenceFile),
	)
	// New session so the agent survives monitor shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting agent %q: %w", d.command, err)
	}

	record := &types.DispatchRecord{
		ID:            dispatchID,
		Kind:          req.Kind,
		Context:       req.Context,
		PID:           cmd.Process.Pid,
		Timestamp:     time.Now(),
		ReferenceFile: req.ReferenceFile,
		Task:          req.Task,
	}

	// The record must be durable before the launch counts. If it cannot
	// be written, the just-started process is terminated best-effort so
	// no agent runs unrecorded.
	if _, err := d.store.SaveDispatch(record); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Process.Release()
		return nil, fmt.Errorf("recording dispatch: %w", err)
	}

	// Detach: reap-free, never joined
	if err := cmd.Process.Release(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to release agent process %d: %v\n", record.PID, err)
	}

	d.mu.Lock()
	d.dispatched++
	d.mu.Unlock()

	fmt.Printf("Dispatch: launched %s agent (pid=%d, ref=%s)\n", req.Kind, record.PID, req.ReferenceFile)
	return record, nil
}

// Dispatched returns how many agents this dispatcher has launched.
func (d *AgentDispatcher) Dispatched() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatched
}
