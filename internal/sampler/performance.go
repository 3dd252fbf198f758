package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/patrolhq/patrol/internal/dispatch"
	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/sysinfo"
	"github.com/patrolhq/patrol/internal/types"
)

// DefaultTrendEvery is how many cumulative samples trigger a trend
// analysis dispatch.
const DefaultTrendEvery = 10

// PerformanceConfig configures the performance pass.
type PerformanceConfig struct {
	// TrendEvery dispatches trend analysis at every Nth cumulative
	// sample (default DefaultTrendEvery)
	TrendEvery int
	// ProcRoot overrides the procfs mount point (tests)
	ProcRoot string
	// SysRoot overrides the sysfs mount point (tests)
	SysRoot string
}

// Performance appends one sample per invocation to the unbounded
// performance log. Every time the cumulative sample count reaches a
// positive multiple of TrendEvery, it dispatches a trend-analysis
// remediation referencing the most recent samples — entirely independent
// of the issue-threshold mechanism.
type Performance struct {
	store      *store.Store
	dispatcher dispatch.Dispatcher
	trendEvery int
	procRoot   string
	sysRoot    string
}

// NewPerformance builds the performance pass.
func NewPerformance(cfg PerformanceConfig, st *store.Store, dispatcher dispatch.Dispatcher) *Performance {
	trendEvery := cfg.TrendEvery
	if trendEvery == 0 {
		trendEvery = DefaultTrendEvery
	}
	procRoot := cfg.ProcRoot
	if procRoot == "" {
		procRoot = sysinfo.DefaultProcRoot
	}
	sysRoot := cfg.SysRoot
	if sysRoot == "" {
		sysRoot = sysinfo.DefaultSysRoot
	}
	return &Performance{
		store:      st,
		dispatcher: dispatcher,
		trendEvery: trendEvery,
		procRoot:   procRoot,
		sysRoot:    sysRoot,
	}
}

func (p *Performance) Name() string { return "performance" }

// Sample appends one performance sample and, at every trendEvery-th
// cumulative sample, dispatches trend analysis. The pass itself produces
// no findings.
func (p *Performance) Sample(ctx context.Context) (*types.FindingsRecord, error) {
	load, err := sysinfo.LoadAverage(p.procRoot)
	if err != nil {
		return nil, fmt.Errorf("sampling load: %w", err)
	}

	sample := &types.PerformanceSample{
		Timestamp: time.Now(),
		Load:      load,
	}
	if temp, err := sysinfo.CPUTemperature(p.sysRoot); err == nil {
		sample.CPUTemperature = fmt.Sprintf("%.1f", temp)
	}

	count, err := p.store.AppendPerformanceSample(sample)
	if err != nil {
		return nil, fmt.Errorf("appending performance sample: %w", err)
	}

	fmt.Printf("performance: sample %d recorded (load=%.2f)\n", count, load)

	if count > 0 && count%p.trendEvery == 0 {
		if err := p.dispatchTrend(ctx, count); err != nil {
			return nil, fmt.Errorf("trend dispatch at sample %d: %w", count, err)
		}
	}

	return types.NewFindingsRecord(p.Name(), nil), nil
}

func (p *Performance) dispatchTrend(ctx context.Context, count int) error {
	samples, err := p.store.TailPerformanceSamples(p.trendEvery)
	if err != nil {
		return fmt.Errorf("reading sample tail: %w", err)
	}

	task, err := dispatch.TrendTask(samples, count, p.store.PerformanceLogPath())
	if err != nil {
		return err
	}

	_, err = p.dispatcher.Dispatch(ctx, dispatch.Request{
		Kind:          types.DispatchRemediation,
		Context:       fmt.Sprintf("performance trend analysis at sample %d", count),
		ReferenceFile: p.store.PerformanceLogPath(),
		Task:          task,
	})
	return err
}
