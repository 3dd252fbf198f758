package sysinfo

import (
	"fmt"

	"github.com/patrolhq/patrol/internal/types"
)

// Snapshot assembles a best-effort host snapshot for exception records.
// Each field is gathered independently; an unreadable source produces
// "unknown" for that field and never fails the snapshot as a whole.
func Snapshot(procRoot, diskPath string) types.SystemSnapshot {
	snap := types.SystemSnapshot{
		Load:          "unknown",
		MemoryPercent: "unknown",
		ProcessCount:  "unknown",
		DiskPercent:   "unknown",
	}

	if load, err := LoadAverage(procRoot); err == nil {
		snap.Load = fmt.Sprintf("%.2f", load)
	}
	if mem, err := MemoryPercent(procRoot); err == nil {
		snap.MemoryPercent = fmt.Sprintf("%.1f", mem)
	}
	if count, err := ProcessCount(procRoot); err == nil {
		snap.ProcessCount = fmt.Sprintf("%d", count)
	}
	if disk, err := DiskPercent(diskPath); err == nil {
		snap.DiskPercent = fmt.Sprintf("%.1f", disk)
	}

	return snap
}
