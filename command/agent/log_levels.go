// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"strings"

	hclog "github.com/hashicorp/go-hclog"
)

// validLevels are the log levels accepted by the agent.
var validLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

// ValidateLevel reports whether level is a log level the agent accepts.
func ValidateLevel(level string) bool {
	level = strings.ToUpper(strings.TrimSpace(level))
	for _, l := range validLevels {
		if l == level {
			return true
		}
	}
	return false
}

// LevelFromString converts a validated level name to an hclog.Level.
func LevelFromString(level string) hclog.Level {
	return hclog.LevelFromString(strings.TrimSpace(level))
}
