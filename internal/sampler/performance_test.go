package sampler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/types"
)

func fakeProcRoot(t *testing.T, loadavg string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "loadavg"), []byte(loadavg), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestPerformanceSample_RecordsWithoutFindings(t *testing.T) {
	ctx := context.Background()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fake := &fakeDispatcher{}
	proc := fakeProcRoot(t, "0.42 0.40 0.35 1/200 12345\n")

	p := NewPerformance(PerformanceConfig{ProcRoot: proc, SysRoot: t.TempDir()}, st, fake)

	rec, err := p.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if rec.IssueCount != 0 || len(rec.Findings) != 0 {
		t.Errorf("performance pass produced findings: %+v", rec.Findings)
	}
	if len(fake.Requests()) != 0 {
		t.Errorf("trend dispatched before the cadence boundary")
	}
}

func TestPerformanceSample_TrendAtCadenceBoundary(t *testing.T) {
	ctx := context.Background()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fake := &fakeDispatcher{}
	proc := fakeProcRoot(t, "1.50 1.20 0.90 2/300 999\n")

	p := NewPerformance(PerformanceConfig{TrendEvery: 4, ProcRoot: proc, SysRoot: t.TempDir()}, st, fake)

	for i := 1; i <= 9; i++ {
		if _, err := p.Sample(ctx); err != nil {
			t.Fatalf("Sample %d: %v", i, err)
		}
	}

	// 9 cumulative samples with cadence 4: boundaries at 4 and 8.
	reqs := fake.Requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d trend dispatches, want 2", len(reqs))
	}
	for _, req := range reqs {
		if req.Kind != types.DispatchRemediation {
			t.Errorf("trend dispatch kind = %s, want remediation", req.Kind)
		}
		if !strings.Contains(req.Task, "load=1.50") {
			t.Errorf("trend task missing sample line:\n%s", req.Task)
		}
		if req.ReferenceFile != st.PerformanceLogPath() {
			t.Errorf("ReferenceFile = %s, want performance log path", req.ReferenceFile)
		}
	}
}

func TestPerformanceSample_CountPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fake := &fakeDispatcher{}
	proc := fakeProcRoot(t, "0.10 0.10 0.10 1/100 1\n")

	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPerformance(PerformanceConfig{TrendEvery: 4, ProcRoot: proc, SysRoot: t.TempDir()}, st, fake)
	for i := 0; i < 3; i++ {
		if _, err := p.Sample(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh sampler over the same state directory continues the count.
	st2, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	p2 := NewPerformance(PerformanceConfig{TrendEvery: 4, ProcRoot: proc, SysRoot: t.TempDir()}, st2, fake)
	if _, err := p2.Sample(ctx); err != nil {
		t.Fatal(err)
	}

	if len(fake.Requests()) != 1 {
		t.Errorf("got %d trend dispatches, want 1 (4th cumulative sample)", len(fake.Requests()))
	}
}

func TestPerformanceSample_LoadFailureIsSamplerError(t *testing.T) {
	ctx := context.Background()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// proc root with no loadavg at all
	p := NewPerformance(PerformanceConfig{ProcRoot: t.TempDir(), SysRoot: t.TempDir()}, st, &fakeDispatcher{})

	if _, err := p.Sample(ctx); err == nil {
		t.Fatal("expected error when load average is unreadable")
	}
}
