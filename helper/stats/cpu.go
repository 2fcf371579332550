// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package stats

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// AvailableProcessingUnits returns the number of logical processing units
// visible to this process. It prefers the host's logical core count and falls
// back to the Go runtime's view, and is never less than 1.
func AvailableProcessingUnits() int {
	units, err := cpu.Counts(true)
	if err != nil || units < 1 {
		units = runtime.NumCPU()
	}
	return FloorUnits(units)
}

// FloorUnits returns n, or 1 if n is not positive.
func FloorUnits(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
