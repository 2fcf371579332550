// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package collector

import "time"

// Config tunes a Collector.
type Config struct {
	// Interval is the time between two collections.
	Interval time.Duration

	// UnavailableWarnThreshold is the number of consecutive samples without
	// data after which a probe is reported as unhealthy. Zero disables the
	// warning.
	UnavailableWarnThreshold int
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:                 1 * time.Second,
		UnavailableWarnThreshold: 5,
	}
}

// Copy returns a copy of the configuration.
func (c *Config) Copy() *Config {
	if c == nil {
		return nil
	}
	nc := *c
	return &nc
}
