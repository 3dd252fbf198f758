package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/patrolhq/patrol/internal/control"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Gracefully stop a running monitor",
	Long: `Ask the running monitor to shut down via its control socket.

The monitor finishes its current suspension point and exits cleanly.
Agent processes it has already dispatched keep running.`,
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if err := stopMonitor(timeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	stopCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the monitor to acknowledge")
	rootCmd.AddCommand(stopCmd)
}

func stopMonitor(timeout time.Duration) error {
	cfg, err := loadPatrolConfig()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	client := control.NewClient(control.SocketPath(cfg.StateDir))
	client.SetTimeout(timeout)

	resp, err := client.Stop()
	if err != nil {
		fmt.Printf("%s No running monitor found in %s\n", yellow("ℹ"), cfg.StateDir)
		return nil
	}
	if !resp.Success {
		return fmt.Errorf("monitor refused stop: %s", resp.Error)
	}

	fmt.Printf("%s Monitor stopping\n", green("✓"))
	return nil
}
