// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package stats

import (
	"time"

	shelpers "github.com/hashicorp/cpuprobe/helper/stats"
)

// processStart approximates the start of the process. It carries a monotonic
// clock reading, so rusage uptime never moves backwards.
var processStart = time.Now()

// RusagePlatform reads the counters of the current process with getrusage(2).
type RusagePlatform struct {
	start time.Time
	units int
}

// RusagePlatformOpener opens the current process.
func RusagePlatformOpener() PlatformOpener {
	return func() (Platform, error) {
		return NewRusagePlatform()
	}
}

func (r *RusagePlatform) AvailableProcessingUnits() int {
	return r.units
}

func (r *RusagePlatform) Uptime() (uint64, error) {
	return uint64(time.Since(r.start).Milliseconds()), nil
}

func newRusagePlatform() *RusagePlatform {
	return &RusagePlatform{
		start: processStart,
		units: shelpers.AvailableProcessingUnits(),
	}
}
