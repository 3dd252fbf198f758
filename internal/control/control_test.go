package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startTestServer(t *testing.T, onCommand func(Command) (map[string]interface{}, error)) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), SocketName)
	srv, err := NewServer(socketPath, onCommand)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return socketPath
}

func TestStatusRoundTrip(t *testing.T) {
	socketPath := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		if cmd.Type != "status" {
			return nil, fmt.Errorf("unexpected command %q", cmd.Type)
		}
		return map[string]interface{}{"cycle_count": 42, "running": true}, nil
	})

	client := NewClient(socketPath)
	client.SetTimeout(2 * time.Second)

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !resp.Success {
		t.Fatalf("response not successful: %s", resp.Error)
	}
	// JSON numbers decode as float64
	if got := resp.Data["cycle_count"]; got != float64(42) {
		t.Errorf("cycle_count = %v, want 42", got)
	}
}

func TestStopCommand(t *testing.T) {
	stopped := make(chan struct{}, 1)
	socketPath := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		if cmd.Type == "stop" {
			stopped <- struct{}{}
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected command %q", cmd.Type)
	})

	resp, err := NewClient(socketPath).Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !resp.Success {
		t.Fatalf("response not successful: %s", resp.Error)
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop command never reached the handler")
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	socketPath := startTestServer(t, func(cmd Command) (map[string]interface{}, error) {
		return nil, fmt.Errorf("monitor is busy")
	})

	resp, err := NewClient(socketPath).Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.Success {
		t.Error("expected failure response")
	}
	if resp.Error != "monitor is busy" {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestNewServer_RemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, SocketName)
	if err := os.WriteFile(socketPath, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(socketPath, nil)
	if err != nil {
		t.Fatalf("NewServer over stale socket: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start over stale socket: %v", err)
	}
	_ = srv.Stop()
}

func TestClient_NoServer(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	client.SetTimeout(500 * time.Millisecond)
	if _, err := client.Status(); err == nil {
		t.Error("expected connection error when no monitor is running")
	}
}

func TestSocketPath(t *testing.T) {
	if got := SocketPath("/var/lib/patrol"); got != "/var/lib/patrol/patrol.sock" {
		t.Errorf("SocketPath = %s", got)
	}
}
