// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hashicorp/cpuprobe/ci"
	"github.com/hashicorp/go-hclog"
	"github.com/shoenig/test/must"
)

func TestHcLogUI(t *testing.T) {
	ci.Parallel(t)

	var buf bytes.Buffer
	ui := &HcLogUI{Log: hclog.New(&hclog.LoggerOptions{
		Name:       "agent",
		Level:      hclog.Info,
		Output:     &buf,
		JSONFormat: true,
	})}

	ui.Output("agent started")
	ui.Warn("counters unavailable")
	ui.Error("shutting down")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	must.SliceLen(t, 3, lines)

	expected := []struct{ level, message string }{
		{"info", "agent started"},
		{"warn", "counters unavailable"},
		{"error", "shutting down"},
	}
	for i, line := range lines {
		var entry struct {
			Level   string `json:"@level"`
			Message string `json:"@message"`
			Module  string `json:"@module"`
		}
		must.NoError(t, json.Unmarshal([]byte(line), &entry))
		must.Eq(t, expected[i].level, entry.Level)
		must.Eq(t, expected[i].message, entry.Message)
		must.Eq(t, "agent", entry.Module)
	}

	_, err := ui.Ask("continue?")
	must.Error(t, err)
	_, err = ui.AskSecret("token?")
	must.Error(t, err)
}
