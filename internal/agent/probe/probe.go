// Package probe looks up processes in the OS process table.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrProcessNotFound indicates no process matched the substring
var ErrProcessNotFound = errors.New("process not found")

// ProcessInfo represents one observed process
type ProcessInfo struct {
	PID        int32
	CPUPercent float64
	MemoryMB   float64
}

// Prober finds a running process whose name contains the substring
type Prober interface {
	Find(ctx context.Context, substring string) (*ProcessInfo, error)
}

// SystemProber implements Prober against the local process table
type SystemProber struct{}

// NewSystemProber creates a system prober
func NewSystemProber() *SystemProber {
	return &SystemProber{}
}

// Find scans the process table for the first process whose name contains
// the substring and returns its CPU and resident memory usage
func (p *SystemProber) Find(ctx context.Context, substring string) (*ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !strings.Contains(name, substring) {
			continue
		}

		info := &ProcessInfo{PID: proc.Pid}

		if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
			info.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			info.MemoryMB = float64(mem.RSS) / 1024 / 1024
		}

		return info, nil
	}

	return nil, ErrProcessNotFound
}
