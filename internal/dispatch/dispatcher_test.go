package dispatch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/types"
)

func newTestDispatcher(t *testing.T, command string, args ...string) (*AgentDispatcher, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(Config{Command: command, Args: args, Store: st})
	if err != nil {
		t.Fatal(err)
	}
	return d, st
}

func TestDispatch_WritesRecordBeforeReturn(t *testing.T) {
	d, st := newTestDispatcher(t, "true")

	rec, err := d.Dispatch(context.Background(), Request{
		Kind:          types.DispatchRemediation,
		Context:       "threshold exceeded",
		ReferenceFile: "/tmp/findings.json",
		Task:          "fix it",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if rec.PID <= 0 {
		t.Errorf("expected positive pid, got %d", rec.PID)
	}
	if rec.Kind != types.DispatchRemediation {
		t.Errorf("Kind = %s", rec.Kind)
	}

	// The dispatch record must already be on disk when Dispatch returns
	entries, err := os.ReadDir(filepath.Join(st.Root(), "dispatches"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dispatch artifact, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(st.Root(), "dispatches", entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var loaded types.DispatchRecord
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.PID != rec.PID {
		t.Errorf("recorded pid %d != returned pid %d", loaded.PID, rec.PID)
	}
	if loaded.ReferenceFile != "/tmp/findings.json" {
		t.Errorf("ReferenceFile = %q", loaded.ReferenceFile)
	}

	if d.Dispatched() != 1 {
		t.Errorf("Dispatched() = %d, want 1", d.Dispatched())
	}
}

func TestDispatch_DoesNotWaitForAgent(t *testing.T) {
	// An agent that sleeps far longer than the test budget: Dispatch must
	// return immediately.
	d, _ := newTestDispatcher(t, "sleep", "60")

	start := time.Now()
	rec, err := d.Dispatch(context.Background(), Request{
		Kind: types.DispatchDiagnostic,
		Task: "diagnose",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Dispatch blocked for %v", elapsed)
	}

	// Best-effort cleanup of the detached sleeper
	if p, err := os.FindProcess(rec.PID); err == nil {
		_ = p.Kill()
	}
}

func TestDispatch_MissingCommand(t *testing.T) {
	d, st := newTestDispatcher(t, "patrol-no-such-agent-binary")

	_, err := d.Dispatch(context.Background(), Request{
		Kind: types.DispatchDiagnostic,
		Task: "diagnose",
	})
	if err == nil {
		t.Fatal("expected error for missing agent command")
	}

	// No record for a launch that never happened
	entries, readErr := os.ReadDir(filepath.Join(st.Root(), "dispatches"))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("expected no dispatch artifacts, got %d", len(entries))
	}
}

func TestDispatch_RejectsEmptyTask(t *testing.T) {
	d, _ := newTestDispatcher(t, "true")

	if _, err := d.Dispatch(context.Background(), Request{Kind: types.DispatchDiagnostic}); err == nil {
		t.Error("expected error for empty task")
	}
	if _, err := d.Dispatch(context.Background(), Request{Kind: "other", Task: "x"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDiagnosticTask_ForbidsFixes(t *testing.T) {
	rec := types.NewExceptionRecord("health pass", "Sample", "panic: boom", types.SystemSnapshot{
		Load: "1.5", MemoryPercent: "80.0", ProcessCount: "200", DiskPercent: "50.0",
	})

	task, err := DiagnosticTask(rec, "/state/exceptions/exception-1.json")
	if err != nil {
		t.Fatalf("DiagnosticTask: %v", err)
	}

	for _, want := range []string{
		"Do NOT attempt any automatic fixes",
		"written diagnosis",
		"panic: boom",
		"/state/exceptions/exception-1.json",
	} {
		if !strings.Contains(task, want) {
			t.Errorf("diagnostic task missing %q:\n%s", want, task)
		}
	}
}

func TestRemediationTask_ListsAllRecords(t *testing.T) {
	health := types.NewFindingsRecord("health", []types.Finding{
		{Type: "high_load", Severity: types.SeverityHigh, Description: "load 9.1"},
		{Type: types.FindingTypeSummary, Severity: types.SeverityLow, Description: "1 issue"},
	})
	service := types.NewFindingsRecord("service", []types.Finding{
		{Type: "directory_missing", Severity: types.SeverityHigh, Description: "/var/lib/patrol missing"},
	})

	task, err := RemediationTask([]*types.FindingsRecord{health, service}, 2, "/state/findings/findings-1.json")
	if err != nil {
		t.Fatalf("RemediationTask: %v", err)
	}

	for _, want := range []string{"health pass", "service pass", "high_load", "directory_missing", "2 issue(s)"} {
		if !strings.Contains(task, want) {
			t.Errorf("remediation task missing %q:\n%s", want, task)
		}
	}
	if strings.Contains(task, "summary:") {
		t.Errorf("summary finding leaked into task text:\n%s", task)
	}
}

func TestTrendTask(t *testing.T) {
	samples := []types.PerformanceSample{
		{Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), Load: 1.5},
		{Timestamp: time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC), Load: 2.5, CPUTemperature: "55.0"},
	}

	task, err := TrendTask(samples, 10, "/state/performance.log")
	if err != nil {
		t.Fatalf("TrendTask: %v", err)
	}

	for _, want := range []string{"10 samples", "load=1.50", "load=2.50", "cpu_temp=55.0C", "/state/performance.log"} {
		if !strings.Contains(task, want) {
			t.Errorf("trend task missing %q:\n%s", want, task)
		}
	}
}
