// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package logging adapts hclog loggers to the interfaces the command line
// tooling expects.
package logging

import (
	"fmt"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"
)

// HcLogUI is an implementation of Ui that takes a hclogger
// and uses it to Log the output. It is intended for write only
// use cases and the Ask/AskSecret methods are not implemented.
//
// The agent swaps its Ui for one of these when logging JSON so that the
// banner and shutdown messages are structured like every other line.
type HcLogUI struct {
	Log hclog.Logger
}

var _ cli.Ui = (*HcLogUI)(nil)

func (l *HcLogUI) Ask(query string) (string, error) {
	return "", fmt.Errorf("Ask is not supported in this implementation")
}

func (l *HcLogUI) AskSecret(query string) (string, error) {
	return "", fmt.Errorf("AskSecret is not supported in this implementation")
}

func (l *HcLogUI) Output(message string) {
	l.Log.Info(message)
}

func (l *HcLogUI) Info(message string) {
	l.Log.Info(message)
}

func (l *HcLogUI) Error(message string) {
	l.Log.Error(message)
}

func (l *HcLogUI) Warn(message string) {
	l.Log.Warn(message)
}
