// Package sysinfo reads host state from procfs and sysfs. Every reader is
// best-effort: a missing or unreadable source yields ErrUnavailable rather
// than a hard failure, so callers can treat absence as "skipped".
package sysinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Default mount points on Linux hosts.
const (
	DefaultProcRoot = "/proc"
	DefaultSysRoot  = "/sys"
)

// ErrUnavailable indicates the underlying source (procfs file, sensor,
// external tool) does not exist on this host. Callers should treat it as
// "cannot measure", not as a host problem.
var ErrUnavailable = errors.New("sysinfo: source unavailable")

// Process is one entry discovered under /proc.
type Process struct {
	PID     int
	Cmdline string
}

// LoadAverage returns the one-minute load average from <procRoot>/loadavg.
func LoadAverage(procRoot string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, "loadavg"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrUnavailable
		}
		return 0, fmt.Errorf("read loadavg: %w", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("malformed loadavg: %q", string(data))
	}

	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse loadavg %q: %w", fields[0], err)
	}
	return load, nil
}

// MemoryPercent returns used memory as a percentage of total, computed
// from MemTotal and MemAvailable in <procRoot>/meminfo.
func MemoryPercent(procRoot string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, "meminfo"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrUnavailable
		}
		return 0, fmt.Errorf("read meminfo: %w", err)
	}

	var totalKB, availKB int64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			availKB, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}

	if totalKB <= 0 {
		return 0, fmt.Errorf("meminfo missing MemTotal")
	}
	used := totalKB - availKB
	return float64(used) / float64(totalKB) * 100, nil
}

// Processes lists processes discovered under procRoot. Entries whose
// cmdline cannot be read (raced exits, permissions) are skipped.
func Processes(procRoot string) ([]Process, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("read %s: %w", procRoot, err)
	}

	var procs []Process
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		cmdline, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "cmdline"))
		if err != nil {
			continue
		}
		cmd := strings.TrimSpace(strings.ReplaceAll(string(cmdline), "\x00", " "))
		if cmd == "" {
			continue
		}

		procs = append(procs, Process{PID: pid, Cmdline: cmd})
	}
	return procs, nil
}

// ProcessCount returns the number of processes with a readable cmdline.
func ProcessCount(procRoot string) (int, error) {
	procs, err := Processes(procRoot)
	if err != nil {
		return 0, err
	}
	return len(procs), nil
}

// CountMatching returns how many process cmdlines satisfy match.
func CountMatching(procRoot string, match func(cmdline string) bool) (int, error) {
	procs, err := Processes(procRoot)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range procs {
		if match(p.Cmdline) {
			count++
		}
	}
	return count, nil
}

// DiskPercent returns used space as a percentage of the filesystem
// containing path.
func DiskPercent(path string) (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	if st.Blocks == 0 {
		return 0, fmt.Errorf("statfs %s: zero block count", path)
	}
	used := st.Blocks - st.Bfree
	return float64(used) / float64(st.Blocks) * 100, nil
}

// CPUTemperature returns the first readable thermal zone temperature in
// degrees Celsius. Hosts without thermal sensors get ErrUnavailable.
func CPUTemperature(sysRoot string) (float64, error) {
	zones, err := filepath.Glob(filepath.Join(sysRoot, "class", "thermal", "thermal_zone*", "temp"))
	if err != nil || len(zones) == 0 {
		return 0, ErrUnavailable
	}

	for _, zone := range zones {
		data, err := os.ReadFile(zone)
		if err != nil {
			continue
		}
		milli, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			continue
		}
		return float64(milli) / 1000, nil
	}
	return 0, ErrUnavailable
}
