// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package stats

import (
	"fmt"
	"runtime"
)

// NewRusagePlatform always fails; getrusage(2) is not available on this
// platform.
func NewRusagePlatform() (*RusagePlatform, error) {
	return nil, fmt.Errorf("getrusage is not supported on %s", runtime.GOOS)
}

func (r *RusagePlatform) ProcessCpuTime() (uint64, error) {
	return 0, fmt.Errorf("getrusage is not supported on %s", runtime.GOOS)
}
