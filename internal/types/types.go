package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity represents how serious a finding is.
type Severity string

const (
	// SeverityLow indicates a cosmetic or informational problem
	SeverityLow Severity = "low"
	// SeverityMedium indicates a problem that should be addressed soon
	SeverityMedium Severity = "medium"
	// SeverityHigh indicates a problem that degrades the host or a service
	SeverityHigh Severity = "high"
	// SeverityCritical indicates a problem requiring immediate attention
	SeverityCritical Severity = "critical"
)

// FindingTypeSummary marks a trailing roll-up entry appended to a pass.
// Summary findings are excluded from a record's issue count.
const FindingTypeSummary = "summary"

// Finding is a single observed health or service problem.
// Findings are immutable once produced.
type Finding struct {
	// Type classifies the finding (e.g., "process_missing", "high_load")
	Type string `json:"type"`
	// Severity is the severity level of this finding
	Severity Severity `json:"severity"`
	// Description is a human-readable explanation of the problem
	Description string `json:"description"`
}

// FindingsRecord is the aggregated output of one sampler pass.
// It is written once when the pass completes and never mutated.
type FindingsRecord struct {
	// ID is the unique identifier for this record
	ID string `json:"id"`
	// Timestamp is when the pass completed
	Timestamp time.Time `json:"timestamp"`
	// Source is the name of the sampler that produced this record
	Source string `json:"source"`
	// Findings are the problems observed, in probe order
	Findings []Finding `json:"findings"`
	// IssueCount is the number of non-summary findings
	IssueCount int `json:"issue_count"`
}

// NewFindingsRecord builds a record for a completed pass.
// IssueCount is derived from the findings, excluding summary entries.
func NewFindingsRecord(source string, findings []Finding) *FindingsRecord {
	count := 0
	for _, f := range findings {
		if f.Type != FindingTypeSummary {
			count++
		}
	}
	return &FindingsRecord{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Source:     source,
		Findings:   findings,
		IssueCount: count,
	}
}

// SystemSnapshot captures best-effort host state at the moment a crash
// was recorded. Each field is "unknown" when the underlying source could
// not be read; a partial snapshot never fails the owning record.
type SystemSnapshot struct {
	Load          string `json:"load"`
	MemoryPercent string `json:"memory_pct"`
	ProcessCount  string `json:"process_count"`
	DiskPercent   string `json:"disk_pct"`
}

// ExceptionRecord documents an unexpected sampler or operation crash.
// Exceptions are operational failures of the monitor itself, distinct
// from findings about the host.
type ExceptionRecord struct {
	// ID is the unique identifier for this record
	ID string `json:"id"`
	// Timestamp is when the crash was caught
	Timestamp time.Time `json:"timestamp"`
	// Context describes where the monitor was when the crash occurred
	Context string `json:"error_context"`
	// FailedOperation names the operation that crashed
	FailedOperation string `json:"failed_operation"`
	// Details carries the error or panic text
	Details string `json:"error_details"`
	// Snapshot is the best-effort host state at crash time
	Snapshot SystemSnapshot `json:"system_snapshot"`
}

// NewExceptionRecord builds an exception record for a caught crash.
func NewExceptionRecord(context, operation, details string, snapshot SystemSnapshot) *ExceptionRecord {
	return &ExceptionRecord{
		ID:              uuid.New().String(),
		Timestamp:       time.Now(),
		Context:         context,
		FailedOperation: operation,
		Details:         details,
		Snapshot:        snapshot,
	}
}

// DispatchKind distinguishes what a dispatched agent is allowed to do.
type DispatchKind string

const (
	// DispatchDiagnostic constrains the agent to analysis only, no fixes
	DispatchDiagnostic DispatchKind = "diagnostic"
	// DispatchRemediation asks the agent to fix the referenced problems
	DispatchRemediation DispatchKind = "remediation"
)

// DispatchRecord documents one asynchronous agent launch. The record is
// durable before the launched process is considered started; the process
// itself is never joined or polled.
type DispatchRecord struct {
	// ID is the unique identifier for this dispatch
	ID string `json:"id"`
	// Kind is diagnostic or remediation
	Kind DispatchKind `json:"kind"`
	// Context describes why the dispatch happened
	Context string `json:"context"`
	// PID is the launched process identifier
	PID int `json:"pid"`
	// Timestamp is when the process was launched
	Timestamp time.Time `json:"timestamp"`
	// ReferenceFile is the findings or exception artifact handed to the agent
	ReferenceFile string `json:"reference_file"`
	// Task is the free-text instruction given to the agent
	Task string `json:"task"`
}

// PerformanceSample is one entry in the append-only performance log.
type PerformanceSample struct {
	// Timestamp is when the sample was taken
	Timestamp time.Time `json:"timestamp"`
	// CPUTemperature is in degrees Celsius; empty when no sensor is readable
	CPUTemperature string `json:"cpu_temperature,omitempty"`
	// Load is the one-minute load average
	Load float64 `json:"load"`
}

// String renders a finding as a one-line summary for console output.
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Type, f.Description)
}
