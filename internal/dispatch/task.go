package dispatch

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/patrolhq/patrol/internal/types"
)

// Task text templates. The diagnostic template is the policy boundary
// between diagnosis and remediation: it explicitly forbids fixes, so an
// operational failure of the monitor can never trigger an automated
// change to the host.

const diagnosticTemplate = `# DIAGNOSTIC REQUEST (read-only)

The host monitor hit an internal failure and needs a diagnosis.

**Failed operation**: {{.Record.FailedOperation}}
**Context**: {{.Record.Context}}
**Error**: {{.Record.Details}}

Host state at failure:
- Load: {{.Record.Snapshot.Load}}
- Memory: {{.Record.Snapshot.MemoryPercent}}%
- Processes: {{.Record.Snapshot.ProcessCount}}
- Disk: {{.Record.Snapshot.DiskPercent}}%

Full exception record: {{.ReferenceFile}}

IMPORTANT: Do NOT attempt any automatic fixes. Do NOT modify the system,
restart services, or change configuration. Produce a written diagnosis
only: what failed, the most likely cause, and what a human operator
should check.
`

const remediationTemplate = `# REMEDIATION REQUEST

The host monitor observed {{.IssueCount}} issue(s) this cycle, at or above
the escalation threshold.

{{range .Records -}}
## {{.Source}} pass ({{.IssueCount}} issue(s), record {{.ID}})
{{range .Findings -}}
{{if ne .Type "summary"}}- [{{.Severity}}] {{.Type}}: {{.Description}}
{{end -}}
{{end}}
{{end -}}
Findings record: {{.ReferenceFile}}

Investigate and remediate these issues. Prefer the smallest safe fix;
document every change you make.
`

const trendTemplate = `# TREND ANALYSIS REQUEST

The performance log has reached {{.SampleCount}} samples. Analyze the most
recent {{len .Samples}} samples for degradation trends.

{{range .Samples -}}
- {{.Timestamp.Format "2006-01-02T15:04:05Z07:00"}} load={{printf "%.2f" .Load}}{{if .CPUTemperature}} cpu_temp={{.CPUTemperature}}C{{end}}
{{end}}
Performance log: {{.ReferenceFile}}

If you find a sustained degradation trend, remediate its cause and note
what you changed. If the trend is benign, record that conclusion.
`

var (
	diagnosticTmpl  = template.Must(template.New("diagnostic").Parse(diagnosticTemplate))
	remediationTmpl = template.Must(template.New("remediation").Parse(remediationTemplate))
	trendTmpl       = template.Must(template.New("trend").Parse(trendTemplate))
)

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s task: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// DiagnosticTask builds the diagnose-only task text for a caught crash.
func DiagnosticTask(rec *types.ExceptionRecord, referenceFile string) (string, error) {
	return render(diagnosticTmpl, struct {
		Record        *types.ExceptionRecord
		ReferenceFile string
	}{rec, referenceFile})
}

// RemediationTask builds the task text for a threshold-triggered
// remediation referencing all findings records from the cycle.
func RemediationTask(records []*types.FindingsRecord, issueCount int, referenceFile string) (string, error) {
	return render(remediationTmpl, struct {
		Records       []*types.FindingsRecord
		IssueCount    int
		ReferenceFile string
	}{records, issueCount, referenceFile})
}

// ServiceIssueTask builds the task text for a single urgent service
// finding that escalates immediately, bypassing the shared threshold.
func ServiceIssueTask(finding types.Finding, referenceFile string) string {
	return fmt.Sprintf(`# URGENT SERVICE ISSUE

The service monitor observed an issue requiring immediate attention:

- [%s] %s: %s

Findings record: %s

Investigate and remediate this issue now. Prefer the smallest safe fix;
document every change you make.
`, finding.Severity, finding.Type, finding.Description, referenceFile)
}

// TrendTask builds the task text for the every-10th-sample trend analysis.
func TrendTask(samples []types.PerformanceSample, sampleCount int, referenceFile string) (string, error) {
	return render(trendTmpl, struct {
		Samples       []types.PerformanceSample
		SampleCount   int
		ReferenceFile string
	}{samples, sampleCount, referenceFile})
}
