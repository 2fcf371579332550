// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package stats

// Platform exposes the cumulative counters a CpuUsageSampler is computed
// from.
type Platform interface {
	// AvailableProcessingUnits returns the number of logical processing
	// units visible to the process.
	AvailableProcessingUnits() int

	// Uptime returns the wall clock time since the process started, in
	// milliseconds.
	Uptime() (uint64, error)

	// ProcessCpuTime returns the user and system CPU time consumed by the
	// process since it started, in nanoseconds.
	ProcessCpuTime() (uint64, error)
}

// PlatformOpener acquires a Platform. A sampler calls it exactly once.
type PlatformOpener func() (Platform, error)

const (
	// CounterSourceGopsutil reads process counters through gopsutil.
	CounterSourceGopsutil = "gopsutil"

	// CounterSourceRusage reads process counters through getrusage(2).
	CounterSourceRusage = "rusage"
)

// CounterSources lists the valid counter source names.
var CounterSources = []string{CounterSourceGopsutil, CounterSourceRusage}

// OpenerFor returns the PlatformOpener for the named counter source, or nil
// if the name is unknown.
func OpenerFor(source string) PlatformOpener {
	switch source {
	case CounterSourceGopsutil, "":
		return HostPlatformOpener()
	case CounterSourceRusage:
		return RusagePlatformOpener()
	default:
		return nil
	}
}
