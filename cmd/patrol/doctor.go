package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/patrolhq/patrol/internal/control"
	"github.com/patrolhq/patrol/internal/store"
	"github.com/patrolhq/patrol/internal/sysinfo"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check patrol installation and environment health",
	Long: `Run health checks to diagnose common patrol configuration issues.

This command checks for:
- State directory existence and writability
- Agent command availability on PATH
- Readable procfs for load/memory/process probes
- Stale control sockets from crashed monitors
- Event index accessibility
- Optional probe tooling (display check command)

Exit codes:
  0 - All checks passed
  1 - One or more checks failed (but not critical)
  2 - Critical failures that prevent patrol from running`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		fixIssues, _ := cmd.Flags().GetBool("fix")
		os.Exit(runDoctor(verbose, fixIssues))
	},
}

func init() {
	doctorCmd.Flags().Bool("verbose", false, "Show detailed error information")
	doctorCmd.Flags().Bool("fix", false, "Attempt to fix issues automatically (remove stale sockets)")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(verbose, fixIssues bool) int {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("Running patrol health checks...\n\n")

	var warnings []string
	var criticalFailures []string

	cfg, err := loadPatrolConfig()
	if err != nil {
		fmt.Printf("%s Configuration\n", cyan("→"))
		fmt.Printf("  %s Cannot load configuration\n", red("✗"))
		if verbose {
			fmt.Printf("    Error: %v\n", err)
		}
		fmt.Printf("\n%s Critical failures prevent patrol from running\n", red("✗"))
		return 2
	}

	// Check 1: state directory
	fmt.Printf("%s State directory\n", cyan("→"))
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot create state directory: %v", err))
		fmt.Printf("  %s Cannot create %s\n", red("✗"), cfg.StateDir)
		if verbose {
			fmt.Printf("    Error: %v\n", err)
		}
	} else {
		probe := filepath.Join(cfg.StateDir, ".doctor-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("State directory not writable: %v", err))
			fmt.Printf("  %s %s is not writable\n", red("✗"), cfg.StateDir)
		} else {
			_ = os.Remove(probe)
			fmt.Printf("  %s %s is writable\n", green("✓"), cfg.StateDir)
		}
	}

	// Check 2: agent command
	fmt.Printf("%s Agent command\n", cyan("→"))
	if path, err := exec.LookPath(cfg.Agent.Command); err != nil {
		criticalFailures = append(criticalFailures, fmt.Sprintf("Agent command %q not on PATH", cfg.Agent.Command))
		fmt.Printf("  %s %q not found on PATH\n", red("✗"), cfg.Agent.Command)
		if verbose {
			fmt.Printf("    Error: %v\n", err)
		}
	} else {
		fmt.Printf("  %s %s\n", green("✓"), path)
	}

	// Check 3: procfs
	fmt.Printf("%s Procfs probes\n", cyan("→"))
	if load, err := sysinfo.LoadAverage(sysinfo.DefaultProcRoot); err != nil {
		criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot read load average: %v", err))
		fmt.Printf("  %s /proc/loadavg unreadable\n", red("✗"))
		if verbose {
			fmt.Printf("    Error: %v\n", err)
		}
	} else {
		fmt.Printf("  %s load average readable (%.2f)\n", green("✓"), load)
	}
	if _, err := sysinfo.MemoryPercent(sysinfo.DefaultProcRoot); err != nil {
		warnings = append(warnings, fmt.Sprintf("Cannot read memory usage: %v", err))
		fmt.Printf("  %s /proc/meminfo unreadable, memory probe will be skipped\n", yellow("⚠"))
	} else {
		fmt.Printf("  %s memory usage readable\n", green("✓"))
	}

	// Check 4: control socket
	fmt.Printf("%s Control socket\n", cyan("→"))
	socketPath := control.SocketPath(cfg.StateDir)
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		fmt.Printf("  %s no socket (no monitor running)\n", green("✓"))
	} else {
		client := control.NewClient(socketPath)
		client.SetTimeout(2 * time.Second)
		if _, err := client.Status(); err == nil {
			fmt.Printf("  %s monitor is running\n", green("✓"))
		} else if fixIssues {
			if err := os.Remove(socketPath); err != nil {
				warnings = append(warnings, fmt.Sprintf("Cannot remove stale socket: %v", err))
				fmt.Printf("  %s stale socket, removal failed\n", red("✗"))
			} else {
				fmt.Printf("  %s removed stale socket\n", green("✓"))
			}
		} else {
			warnings = append(warnings, "Stale control socket from a crashed monitor")
			fmt.Printf("  %s stale socket at %s (rerun with --fix)\n", yellow("⚠"), socketPath)
		}
	}

	// Check 5: event index
	fmt.Printf("%s Event index\n", cyan("→"))
	if events, err := store.OpenEventIndex(filepath.Join(cfg.StateDir, "events.db")); err != nil {
		warnings = append(warnings, fmt.Sprintf("Event index unavailable: %v", err))
		fmt.Printf("  %s cannot open event index (audit history disabled)\n", yellow("⚠"))
		if verbose {
			fmt.Printf("    Error: %v\n", err)
		}
	} else {
		if counts, err := events.EventCounts(context.Background()); err == nil {
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Printf("  %s event index OK (%d events)\n", green("✓"), total)
		} else {
			fmt.Printf("  %s event index OK\n", green("✓"))
		}
		_ = events.Close()
	}

	// Check 6: optional probe tooling
	fmt.Printf("%s Probe tooling\n", cyan("→"))
	if cfg.Health.DisplayCommand == "" {
		fmt.Printf("  %s display probe disabled\n", green("✓"))
	} else if _, err := exec.LookPath(cfg.Health.DisplayCommand); err != nil {
		warnings = append(warnings, fmt.Sprintf("%q not on PATH, display probe will be skipped", cfg.Health.DisplayCommand))
		fmt.Printf("  %s %q not found, display probe will be skipped\n", yellow("⚠"), cfg.Health.DisplayCommand)
	} else {
		fmt.Printf("  %s %q available\n", green("✓"), cfg.Health.DisplayCommand)
	}

	fmt.Println()
	switch {
	case len(criticalFailures) > 0:
		fmt.Printf("%s %d critical failure(s) prevent patrol from running\n", red("✗"), len(criticalFailures))
		return 2
	case len(warnings) > 0:
		fmt.Printf("%s All critical checks passed, %d warning(s)\n", yellow("⚠"), len(warnings))
		return 1
	default:
		fmt.Printf("%s All checks passed\n", green("✓"))
		return 0
	}
}
