// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"testing"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/cpuprobe/ci"
	"github.com/shoenig/test/must"
)

func TestCommands(t *testing.T) {
	ci.Parallel(t)

	ui := cli.NewMockUi()
	commands := Commands(&Meta{Ui: ui}, nil)
	must.MapContainsKeys(t, commands, []string{"agent", "sample", "version"})

	for name, factory := range commands {
		cmd, err := factory()
		must.NoError(t, err)
		must.NotNil(t, cmd, must.Sprint(name))
		must.NotEq(t, "", cmd.Synopsis(), must.Sprint(name))
	}
}

func TestMeta_SetupUi(t *testing.T) {
	t.Setenv(EnvCLINoColor, "")
	t.Setenv(EnvCLIForceColor, "")

	m := &Meta{Ui: cli.NewMockUi()}
	m.SetupUi([]string{"sample", "-force-color"})
	_, colored := m.Ui.(*cli.ColoredUi)
	must.True(t, colored)
	must.False(t, m.Colorize().Disable)

	m = &Meta{Ui: cli.NewMockUi()}
	m.SetupUi([]string{"sample", "-force-color", "-no-color"})
	_, colored = m.Ui.(*cli.ColoredUi)
	must.False(t, colored)
	must.True(t, m.Colorize().Disable)
}

func TestHelpers_FormatKV(t *testing.T) {
	ci.Parallel(t)

	in := []string{"alpha|beta", "charlie|delta", "echo|"}
	out := formatKV(in)

	expect := "alpha   = beta\n"
	expect += "charlie = delta\n"
	expect += "echo    = <none>"

	must.Eq(t, expect, out)
}

func TestHelpers_UiErrorWriter(t *testing.T) {
	ci.Parallel(t)

	ui := cli.NewMockUi()
	w := &uiErrorWriter{ui: ui}

	n, err := w.Write([]byte("partial "))
	must.NoError(t, err)
	must.Eq(t, 8, n)
	must.Eq(t, "", ui.ErrorWriter.String())

	_, err = w.Write([]byte("line\nsecond line\ntrailing"))
	must.NoError(t, err)
	must.Eq(t, "partial line\nsecond line\n", ui.ErrorWriter.String())

	must.NoError(t, w.Close())
	must.Eq(t, "partial line\nsecond line\ntrailing\n", ui.ErrorWriter.String())
}
