// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package stats

import (
	"context"
	"fmt"
	"os"
	"time"

	shelpers "github.com/hashicorp/cpuprobe/helper/stats"
	"github.com/shirou/gopsutil/v3/process"
	"oss.indeed.com/go/libtime"
)

// hostQueryTimeout bounds each gopsutil query.
const hostQueryTimeout = 1 * time.Second

// HostPlatform reads the counters of a single process through gopsutil.
type HostPlatform struct {
	proc    *process.Process
	created time.Time
	units   int
	clock   libtime.Clock
}

// NewHostPlatform opens the process identified by pid.
func NewHostPlatform(pid int32, clock libtime.Clock) (*HostPlatform, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hostQueryTimeout)
	defer cancel()

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	createdMs, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read start time of process %d: %w", pid, err)
	}

	return &HostPlatform{
		proc:    p,
		created: time.UnixMilli(createdMs),
		units:   shelpers.AvailableProcessingUnits(),
		clock:   clock,
	}, nil
}

// HostPlatformOpener opens the current process with the system clock.
func HostPlatformOpener() PlatformOpener {
	return func() (Platform, error) {
		return NewHostPlatform(int32(os.Getpid()), libtime.SystemClock())
	}
}

func (h *HostPlatform) AvailableProcessingUnits() int {
	return h.units
}

// Uptime is measured on the wall clock, so it moves backwards if the system
// clock is stepped back. Callers treat that as time not advancing.
func (h *HostPlatform) Uptime() (uint64, error) {
	elapsed := h.clock.Now().Sub(h.created)
	if elapsed < 0 {
		return 0, fmt.Errorf("clock is %s behind process start", -elapsed)
	}
	return uint64(elapsed.Milliseconds()), nil
}

func (h *HostPlatform) ProcessCpuTime() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hostQueryTimeout)
	defer cancel()

	times, err := h.proc.TimesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read cpu times of process %d: %w", h.proc.Pid, err)
	}

	const second = float64(time.Second)
	return uint64((times.User + times.System) * second), nil
}
