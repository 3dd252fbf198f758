package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/patrolhq/patrol/internal/control"
	"github.com/patrolhq/patrol/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor status and recent activity",
	Long:  `Display the running monitor's loop state and recent events from the audit index.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := showStatus(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus() error {
	cfg, err := loadPatrolConfig()
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Patrol Status ==="))

	client := control.NewClient(control.SocketPath(cfg.StateDir))
	client.SetTimeout(5 * time.Second)

	resp, err := client.Status()
	switch {
	case err != nil:
		fmt.Printf("%s No running monitor in %s\n", yellow("○"), cfg.StateDir)
	case !resp.Success:
		fmt.Printf("%s Monitor unhealthy: %s\n", red("✗"), resp.Error)
	default:
		fmt.Printf("%s Monitor running (pid %v on %v)\n", green("●"), resp.Data["pid"], resp.Data["hostname"])
		fmt.Printf("  Cycles completed:     %v\n", resp.Data["cycle_count"])
		fmt.Printf("  Consecutive failures: %v\n", resp.Data["consecutive_failures"])
		fmt.Printf("  Agents dispatched:    %v\n", resp.Data["dispatched"])
	}

	// Recent activity comes from the audit index, available whether or
	// not the monitor is up.
	events, err := store.OpenEventIndex(filepath.Join(cfg.StateDir, "events.db"))
	if err != nil {
		fmt.Printf("\n%s\n", gray("(no event history available)"))
		return nil
	}
	defer events.Close()

	ctx := context.Background()

	counts, err := events.EventCounts(ctx)
	if err == nil && len(counts) > 0 {
		fmt.Printf("\n%s\n", yellow("Event totals:"))
		for _, eventType := range []store.EventType{
			store.EventCycleCompleted,
			store.EventCycleFailed,
			store.EventDispatched,
			store.EventExceptionRecorded,
		} {
			if n := counts[eventType]; n > 0 {
				fmt.Printf("  %-20s %d\n", eventType, n)
			}
		}
	}

	recent, err := events.RecentEvents(ctx, 10)
	if err != nil || len(recent) == 0 {
		return nil
	}
	fmt.Printf("\n%s\n", yellow("Recent events:"))
	for _, event := range recent {
		marker := gray("·")
		switch event.Severity {
		case store.EventWarning:
			marker = yellow("⚠")
		case store.EventError:
			marker = red("✗")
		}
		fmt.Printf("  %s %s cycle %d: %s %s\n",
			marker,
			event.Timestamp.Format("15:04:05"),
			event.Cycle,
			event.Type,
			gray(event.Message))
	}
	return nil
}
