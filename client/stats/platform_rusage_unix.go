// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package stats

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NewRusagePlatform returns a RusagePlatform after checking getrusage(2)
// works for this process.
func NewRusagePlatform() (*RusagePlatform, error) {
	if _, err := rusageCpuTime(); err != nil {
		return nil, err
	}
	return newRusagePlatform(), nil
}

func (r *RusagePlatform) ProcessCpuTime() (uint64, error) {
	return rusageCpuTime()
}

func rusageCpuTime() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage failed: %w", err)
	}
	return uint64(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
