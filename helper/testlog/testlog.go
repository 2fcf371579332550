// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package testlog creates hclog.Loggers backed by testing.T so that log output
// is attributed to the test that produced it.
package testlog

import (
	"io"
	"os"
	"strconv"

	hclog "github.com/hashicorp/go-hclog"
)

// Logger is the methods of testing.T (or testing.B) needed by the test
// logger.
type Logger interface {
	Logf(format string, args ...any)
	Name() string
}

// Writer implements io.Writer on top of a Logger.
type Writer struct {
	t Logger
}

// NewWriter returns a Writer for t.
func NewWriter(t Logger) io.Writer {
	return &Writer{t: t}
}

// Write to an underlying Logger. Never returns an error.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// HCLogger returns a logger writing to t at the level named by
// CPUPROBE_TEST_LOG_LEVEL, TRACE by default. Setting CPUPROBE_TEST_LOG_QUIET
// discards all output.
func HCLogger(t Logger) hclog.InterceptLogger {
	level := hclog.Trace
	if envLevel := os.Getenv("CPUPROBE_TEST_LOG_LEVEL"); envLevel != "" {
		level = hclog.LevelFromString(envLevel)
	}

	var output io.Writer = NewWriter(t)
	if quiet, _ := strconv.ParseBool(os.Getenv("CPUPROBE_TEST_LOG_QUIET")); quiet {
		output = io.Discard
	}

	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:            t.Name(),
		Level:           level,
		Output:          output,
		IncludeLocation: true,
	})
}
