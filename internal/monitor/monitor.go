// Package monitor implements the top-level control loop: it sequences
// the samplers each cycle, applies the escalation policy to the cycle's
// issue total, computes the adaptive inter-cycle delay, and recovers
// from whole-cycle crashes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patrolhq/patrol/internal/dispatch"
	"github.com/patrolhq/patrol/internal/sampler"
	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// ErrRecoveryFailed is returned when the recovery sleep after a cycle
// crash could not be performed. This is the only fatal path out of the
// loop.
var ErrRecoveryFailed = errors.New("recovery sleep failed")

const (
	shortRecoverySleep = 15 * time.Second
	longRecoverySleep  = 60 * time.Second

	delayBusy  = 10 * time.Second
	delayWatch = 20 * time.Second
	delayIdle  = 30 * time.Second
)

// cycleState is owned exclusively by the loop goroutine.
type cycleState struct {
	cycleCount          int
	consecutiveFailures int
}

// Deps are the collaborators the monitor drives. Store, Dispatcher and
// the three samplers are required; Events, Clock and Snapshot have
// working defaults.
type Deps struct {
	Store       *store.Store
	Events      *store.EventIndex
	Dispatcher  dispatch.Dispatcher
	Clock       Clock
	Health      sampler.Sampler
	Service     sampler.Sampler
	Performance sampler.Sampler
	Snapshot    func() types.SystemSnapshot
}

// Monitor runs the monitoring loop. Create with New, drive with Run,
// request shutdown with Stop.
type Monitor struct {
	config             Config
	minDelay, maxDelay time.Duration

	store       *store.Store
	events      *store.EventIndex
	dispatcher  dispatch.Dispatcher
	clock       Clock
	health      sampler.Sampler
	service     sampler.Sampler
	performance sampler.Sampler
	exceptions  *ExceptionHandler

	state    cycleState
	instance Instance

	mu         sync.RWMutex
	running    bool
	startedAt  time.Time
	lastStatus Status

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// Instance identifies one monitor process for audit records.
type Instance struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
	PID      int    `json:"pid"`
}

func newInstance() Instance {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Instance{
		ID:       uuid.New().String(),
		Hostname: hostname,
		PID:      os.Getpid(),
	}
}

// Status is a point-in-time view of the loop for the control socket.
type Status struct {
	Running             bool      `json:"running"`
	Instance            Instance  `json:"instance"`
	StartedAt           time.Time `json:"started_at,omitempty"`
	CycleCount          int       `json:"cycle_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Dispatched          int       `json:"dispatched"`
}

func New(cfg Config, deps Deps) (*Monitor, error) {
	minDelay, maxDelay, err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Health == nil || deps.Service == nil || deps.Performance == nil {
		return nil, fmt.Errorf("all three samplers are required")
	}
	if deps.Clock == nil {
		deps.Clock = NewClock()
	}
	if deps.Snapshot == nil {
		deps.Snapshot = func() types.SystemSnapshot {
			return sysinfo.Snapshot(sysinfo.DefaultProcRoot, "/")
		}
	}

	return &Monitor{
		config:      cfg,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		store:       deps.Store,
		events:      deps.Events,
		dispatcher:  deps.Dispatcher,
		clock:       deps.Clock,
		health:      deps.Health,
		service:     deps.Service,
		performance: deps.Performance,
		exceptions:  NewExceptionHandler(deps.Store, deps.Dispatcher, deps.Events, deps.Snapshot),
		instance:    newInstance(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Run executes the monitoring loop until shutdown. It returns nil on a
// graceful stop (context cancelled or Stop called) and ErrRecoveryFailed
// when the crash-recovery sleep itself fails. In-flight agent processes
// are never awaited or cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.startedAt = m.clock.Now()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(m.doneCh)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Printf("patrol: monitoring started (instance=%s, pid=%d, threshold=%d, state=%s)\n",
		m.instance.ID[:8], m.instance.PID, m.config.IssueThreshold, m.store.Root())
	m.recordEvent(ctx, store.EventMonitorStarted, 0, store.EventInfo, "monitoring started",
		map[string]interface{}{
			"instance_id": m.instance.ID,
			"hostname":    m.instance.Hostname,
			"pid":         m.instance.PID,
		})
	defer func() {
		m.recordEvent(context.Background(), store.EventMonitorStopped, m.state.cycleCount,
			store.EventInfo, "monitoring stopped", nil)
	}()

	for {
		if ctx.Err() != nil {
			fmt.Println("patrol: shutdown requested, stopping")
			return nil
		}

		issues, err := m.runCycle(ctx)
		m.publishStatus()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if fatal := m.recoverFromCrash(ctx, err); fatal != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fatal
			}
			m.publishStatus()
			continue
		}

		m.state.consecutiveFailures = 0
		m.publishStatus()

		delay := m.delayFor(issues)
		fmt.Printf("patrol: cycle %d complete, %d issue(s), next cycle in %s\n",
			m.state.cycleCount, issues, delay)
		if err := m.clock.Sleep(ctx, delay); err != nil {
			fmt.Println("patrol: shutdown requested, stopping")
			return nil
		}
	}
}

// Stop requests a graceful shutdown and waits for the loop to exit.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()

	m.stopOnce.Do(func() { close(m.stopCh) })
	if running {
		<-m.doneCh
	}
}

// Status returns the loop's current state.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := m.lastStatus
	status.Running = m.running
	status.Instance = m.instance
	status.StartedAt = m.startedAt
	return status
}

// recoverFromCrash applies the crash policy: a 15s recovery sleep below
// the failure limit, a 60s sleep plus counter reset at the limit. A
// recovery sleep that fails for any reason other than shutdown is
// terminal.
func (m *Monitor) recoverFromCrash(ctx context.Context, cause error) error {
	m.state.consecutiveFailures++
	failures := m.state.consecutiveFailures

	fmt.Fprintf(os.Stderr, "Warning: cycle %d failed (%d consecutive): %v\n",
		m.state.cycleCount, failures, cause)
	m.recordEvent(ctx, store.EventCycleFailed, m.state.cycleCount, store.EventError,
		cause.Error(), map[string]interface{}{"consecutive_failures": failures})

	sleep := shortRecoverySleep
	reset := false
	if failures >= m.config.MaxConsecutiveFailures {
		sleep = longRecoverySleep
		reset = true
	}

	fmt.Printf("patrol: recovery sleep %s after cycle failure\n", sleep)
	m.recordEvent(ctx, store.EventRecoverySleep, m.state.cycleCount, store.EventWarning,
		fmt.Sprintf("sleeping %s (%d consecutive failures)", sleep, failures), nil)

	if err := m.clock.Sleep(ctx, sleep); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	if reset {
		m.state.consecutiveFailures = 0
	}
	return nil
}

// delayFor maps the cycle's issue total to the next delay: many issues
// poll fast, a quiet host polls slow. Clamped to the configured bounds.
func (m *Monitor) delayFor(issues int) time.Duration {
	var d time.Duration
	switch {
	case issues >= m.config.IssueThreshold:
		d = delayBusy
	case issues > 0:
		d = delayWatch
	default:
		d = delayIdle
	}
	if d < m.minDelay {
		d = m.minDelay
	}
	if d > m.maxDelay {
		d = m.maxDelay
	}
	return d
}

func (m *Monitor) publishStatus() {
	m.mu.Lock()
	m.lastStatus.CycleCount = m.state.cycleCount
	m.lastStatus.ConsecutiveFailures = m.state.consecutiveFailures
	m.mu.Unlock()
}

func (m *Monitor) addDispatched(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.lastStatus.Dispatched += n
	m.mu.Unlock()
}

func (m *Monitor) recordEvent(ctx context.Context, eventType store.EventType, cycle int, severity store.EventSeverity, message string, data map[string]interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.RecordEvent(ctx, store.NewEvent(eventType, cycle, severity, message, data)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: event index write failed: %v\n", err)
	}
}
