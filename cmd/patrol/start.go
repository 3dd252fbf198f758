package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patrolhq/patrol/internal/control"
	"github.com/patrolhq/patrol/internal/dispatch"
	"github.com/patrolhq/patrol/internal/monitor"
	"github.com/patrolhq/patrol/internal/sampler"
	"github.com/patrolhq/patrol/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitoring loop",
	Long: `Start the monitoring loop in the foreground.

The loop runs until it receives SIGINT/SIGTERM or a stop command over
the control socket. Exit code 0 means a graceful shutdown; exit code 1
means the loop's crash recovery itself failed.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStart(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart() error {
	ctx := context.Background()

	cfg, err := loadPatrolConfig()
	if err != nil {
		return err
	}

	st, err := store.New(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("opening state directory: %w", err)
	}

	// The event index is an audit convenience; the JSON artifacts are
	// the record of truth, so a broken index degrades with a warning.
	var events *store.EventIndex
	events, err = store.OpenEventIndex(filepath.Join(st.Root(), "events.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: event index unavailable: %v\n", err)
		events = nil
	} else {
		defer events.Close()
	}

	disp, err := dispatch.New(dispatch.Config{
		Command: cfg.Agent.Command,
		Args:    cfg.Agent.Args,
		Store:   st,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	health := sampler.NewHealth(sampler.HealthConfig{
		CriticalProcesses: cfg.Health.CriticalProcesses,
		DisplayCommand:    cfg.Health.DisplayCommand,
		DisplayArgs:       cfg.Health.DisplayArgs,
		MaxLoad:           cfg.Health.MaxLoad,
		MaxMemoryPercent:  cfg.Health.MaxMemoryPercent,
	})
	service := sampler.NewService(sampler.ServiceConfig{
		AgentProcessMatch: cfg.Service.AgentProcessMatch,
		AgentBound:        cfg.Service.AgentBound,
		RequiredDirs:      cfg.Service.RequiredDirs,
	}, disp)
	performance := sampler.NewPerformance(sampler.PerformanceConfig{
		TrendEvery: cfg.Performance.TrendEvery,
	}, st, disp)

	mon, err := monitor.New(cfg, monitor.Deps{
		Store:       st,
		Events:      events,
		Dispatcher:  disp,
		Health:      health,
		Service:     service,
		Performance: performance,
	})
	if err != nil {
		return err
	}

	srv, err := control.NewServer(control.SocketPath(cfg.StateDir), func(cmd control.Command) (map[string]interface{}, error) {
		switch cmd.Type {
		case "stop":
			// Stop blocks until the loop exits; reply first.
			go mon.Stop()
			return nil, nil
		case "status":
			status := mon.Status()
			return map[string]interface{}{
				"running":              status.Running,
				"instance_id":          status.Instance.ID,
				"hostname":             status.Instance.Hostname,
				"pid":                  status.Instance.PID,
				"started_at":           status.StartedAt,
				"cycle_count":          status.CycleCount,
				"consecutive_failures": status.ConsecutiveFailures,
				"dispatched":           status.Dispatched,
			}, nil
		default:
			return nil, fmt.Errorf("unknown command %q", cmd.Type)
		}
	})
	if err != nil {
		return fmt.Errorf("creating control server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting control server: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\npatrol: signal received, shutting down")
		mon.Stop()
	}()

	return mon.Run(ctx)
}
