package types

import (
	"testing"
)

func TestNewFindingsRecord_IssueCount(t *testing.T) {
	tests := []struct {
		name     string
		findings []Finding
		want     int
	}{
		{
			name:     "empty pass",
			findings: nil,
			want:     0,
		},
		{
			name: "all real findings",
			findings: []Finding{
				{Type: "process_missing", Severity: SeverityHigh, Description: "sshd not running"},
				{Type: "high_load", Severity: SeverityCritical, Description: "load 12.4"},
			},
			want: 2,
		},
		{
			name: "trailing summary excluded",
			findings: []Finding{
				{Type: "process_missing", Severity: SeverityHigh, Description: "sshd not running"},
				{Type: FindingTypeSummary, Severity: SeverityLow, Description: "1 issue in pass"},
			},
			want: 1,
		},
		{
			name: "summary only",
			findings: []Finding{
				{Type: FindingTypeSummary, Severity: SeverityLow, Description: "0 issues in pass"},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewFindingsRecord("health", tt.findings)
			if rec.IssueCount != tt.want {
				t.Errorf("IssueCount = %d, want %d", rec.IssueCount, tt.want)
			}
			if rec.Source != "health" {
				t.Errorf("Source = %q, want %q", rec.Source, "health")
			}
			if rec.ID == "" {
				t.Error("expected non-empty record ID")
			}
			if rec.Timestamp.IsZero() {
				t.Error("expected timestamp to be set")
			}
		})
	}
}

func TestNewFindingsRecord_UniqueIDs(t *testing.T) {
	a := NewFindingsRecord("health", nil)
	b := NewFindingsRecord("health", nil)
	if a.ID == b.ID {
		t.Errorf("expected distinct record IDs, both were %s", a.ID)
	}
}

func TestNewExceptionRecord(t *testing.T) {
	snap := SystemSnapshot{
		Load:          "1.20",
		MemoryPercent: "unknown",
		ProcessCount:  "312",
		DiskPercent:   "48",
	}
	rec := NewExceptionRecord("health sampler pass", "Sample", "runtime error: index out of range", snap)

	if rec.ID == "" {
		t.Error("expected non-empty exception ID")
	}
	if rec.Context != "health sampler pass" {
		t.Errorf("Context = %q", rec.Context)
	}
	if rec.FailedOperation != "Sample" {
		t.Errorf("FailedOperation = %q", rec.FailedOperation)
	}
	if rec.Snapshot.MemoryPercent != "unknown" {
		t.Errorf("expected partial snapshot to be preserved, got %q", rec.Snapshot.MemoryPercent)
	}
}

func TestFindingString(t *testing.T) {
	f := Finding{Type: "high_load", Severity: SeverityHigh, Description: "load 8.1 exceeds 4.0"}
	got := f.String()
	want := "[high] high_load: load 8.1 exceeds 4.0"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
