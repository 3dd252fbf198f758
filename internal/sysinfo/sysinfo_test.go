package sysinfo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFakeProc builds a minimal procfs tree under a temp dir.
func writeFakeProc(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	mustWrite(t, filepath.Join(root, "loadavg"), "1.25 0.90 0.60 2/310 12345\n")
	mustWrite(t, filepath.Join(root, "meminfo"),
		"MemTotal:       8000000 kB\nMemFree:        1000000 kB\nMemAvailable:   2000000 kB\n")

	for pid, cmdline := range map[string]string{
		"101": "sshd\x00-D",
		"102": "patrol-agent\x00--task\x00diagnose",
		"103": "patrol-agent\x00--task\x00remediate",
	} {
		dir := filepath.Join(root, pid)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		mustWrite(t, filepath.Join(dir, "cmdline"), cmdline)
	}

	// Non-numeric entries must be ignored
	if err := os.MkdirAll(filepath.Join(root, "sys"), 0755); err != nil {
		t.Fatal(err)
	}

	return root
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAverage(t *testing.T) {
	root := writeFakeProc(t)

	load, err := LoadAverage(root)
	if err != nil {
		t.Fatalf("LoadAverage: %v", err)
	}
	if load != 1.25 {
		t.Errorf("LoadAverage = %v, want 1.25", load)
	}
}

func TestLoadAverage_Unavailable(t *testing.T) {
	_, err := LoadAverage(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryPercent(t *testing.T) {
	root := writeFakeProc(t)

	pct, err := MemoryPercent(root)
	if err != nil {
		t.Fatalf("MemoryPercent: %v", err)
	}
	// used = 8000000 - 2000000 = 6000000 → 75%
	if pct != 75.0 {
		t.Errorf("MemoryPercent = %v, want 75.0", pct)
	}
}

func TestProcesses(t *testing.T) {
	root := writeFakeProc(t)

	procs, err := Processes(root)
	if err != nil {
		t.Fatalf("Processes: %v", err)
	}
	if len(procs) != 3 {
		t.Fatalf("got %d processes, want 3", len(procs))
	}

	count, err := CountMatching(root, func(cmdline string) bool {
		return strings.Contains(cmdline, "patrol-agent")
	})
	if err != nil {
		t.Fatalf("CountMatching: %v", err)
	}
	if count != 2 {
		t.Errorf("CountMatching = %d, want 2", count)
	}
}

func TestCPUTemperature(t *testing.T) {
	root := t.TempDir()
	zone := filepath.Join(root, "class", "thermal", "thermal_zone0")
	if err := os.MkdirAll(zone, 0755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(zone, "temp"), "48500\n")

	temp, err := CPUTemperature(root)
	if err != nil {
		t.Fatalf("CPUTemperature: %v", err)
	}
	if temp != 48.5 {
		t.Errorf("CPUTemperature = %v, want 48.5", temp)
	}
}

func TestCPUTemperature_NoSensor(t *testing.T) {
	_, err := CPUTemperature(t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestSnapshot_PartialFailure(t *testing.T) {
	root := writeFakeProc(t)
	// Remove meminfo so only that field degrades
	if err := os.Remove(filepath.Join(root, "meminfo")); err != nil {
		t.Fatal(err)
	}

	snap := Snapshot(root, t.TempDir())

	if snap.Load != "1.25" {
		t.Errorf("Load = %q, want %q", snap.Load, "1.25")
	}
	if snap.MemoryPercent != "unknown" {
		t.Errorf("MemoryPercent = %q, want unknown", snap.MemoryPercent)
	}
	if snap.ProcessCount != "3" {
		t.Errorf("ProcessCount = %q, want 3", snap.ProcessCount)
	}
	if snap.DiskPercent == "" {
		t.Error("DiskPercent should never be empty")
	}
}

func TestSnapshot_AllUnavailable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	snap := Snapshot(missing, missing)

	if snap.Load != "unknown" || snap.MemoryPercent != "unknown" ||
		snap.ProcessCount != "unknown" || snap.DiskPercent != "unknown" {
		t.Errorf("expected fully-unknown snapshot, got %+v", snap)
	}
}
