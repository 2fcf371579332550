// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package ci

import (
	"os"
	"strconv"
	"testing"
)

// SkipSlow skips a test that burns real CPU time for a while unless
// CPUPROBE_SLOW_TEST is set to a true value.
func SkipSlow(t *testing.T, reason string) {
	run, err := strconv.ParseBool(os.Getenv("CPUPROBE_SLOW_TEST"))
	if !run || err != nil {
		t.Skipf("Skipping slow test: %s", reason)
	}
}

// Parallel runs t in parallel, unless CI is set to a true value. Tests that
// measure the CPU time of the test binary must not call Parallel.
func Parallel(t *testing.T) {
	isCI, err := strconv.ParseBool(os.Getenv("CI"))
	if !isCI || err != nil {
		t.Parallel()
	}
}
