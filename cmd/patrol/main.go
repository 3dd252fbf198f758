// Command patrol is an unattended host-monitoring daemon. It samples
// machine and service health on an adaptive cadence, records findings
// as JSON artifacts, and delegates diagnosis and remediation to an
// external autonomous agent when issues accumulate.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patrolhq/patrol/internal/monitor"
)

var (
	configPath string
	stateDir   string
)

var rootCmd = &cobra.Command{
	Use:   "patrol",
	Short: "Unattended host-monitoring daemon with agent escalation",
	Long: `Patrol watches a host: process presence, display health, load,
memory, service state and performance trends. Findings are recorded as
JSON artifacts; when enough issues accumulate in one cycle, patrol
dispatches an external agent to remediate them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Override the state directory")
}

// loadPatrolConfig resolves configuration from the --config file (or
// defaults) plus the --state-dir override.
func loadPatrolConfig() (monitor.Config, error) {
	cfg := monitor.DefaultConfig()
	if configPath != "" {
		loaded, err := monitor.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
