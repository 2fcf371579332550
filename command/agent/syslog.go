// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"bytes"

	gsyslog "github.com/hashicorp/go-syslog"
)

// levelPriority is used to map a log level to a syslog priority level
var levelPriority = map[string]gsyslog.Priority{
	"TRACE": gsyslog.LOG_DEBUG,
	"DEBUG": gsyslog.LOG_INFO,
	"INFO":  gsyslog.LOG_NOTICE,
	"WARN":  gsyslog.LOG_WARNING,
	"ERROR": gsyslog.LOG_ERR,
}

// SyslogWrapper is used to cleanup log messages before
// writing them to a Syslogger. Implements the io.Writer
// interface.
type SyslogWrapper struct {
	l gsyslog.Syslogger
}

// Write is used to implement io.Writer. The level is taken from the
// bracketed prefix hclog writes, lines without one go out as notices.
func (s *SyslogWrapper) Write(p []byte) (int, error) {
	// Extract log level
	var level string
	afterLevel := p
	x := bytes.IndexByte(p, '[')
	if x >= 0 {
		y := bytes.IndexByte(p[x:], ']')
		if y >= 0 {
			level = string(p[x+1 : x+y])
			afterLevel = bytes.TrimLeft(p[x+y+1:], " ")
		}
	}

	// Each log level will be handled by a specific syslog priority
	priority, ok := levelPriority[level]
	if !ok {
		priority = gsyslog.LOG_NOTICE
	}

	// Attempt the write
	err := s.l.WriteLevel(priority, afterLevel)
	return len(p), err
}

// newSyslogWriter connects to the local syslog daemon.
func newSyslogWriter(facility string) (*SyslogWrapper, error) {
	l, err := gsyslog.NewLogger(gsyslog.LOG_NOTICE, facility, "cpuprobe")
	if err != nil {
		return nil, err
	}
	return &SyslogWrapper{l: l}, nil
}
