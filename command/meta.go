// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"flag"
	"os"

	"github.com/hashicorp/cli"
	"github.com/mitchellh/colorstring"
	"github.com/posener/complete"
	"golang.org/x/term"
)

// Meta contains the meta-options and functionality that every cpuprobe
// command inherits.
type Meta struct {
	Ui cli.Ui

	// Whether to not-colorize output
	noColor bool

	// Whether to force colorized output
	forceColor bool
}

// FlagSet returns a FlagSet with the common flags that every command
// implements. Flag parsing errors are written to the Ui.
func (m *Meta) FlagSet(n string) *flag.FlagSet {
	f := flag.NewFlagSet(n, flag.ContinueOnError)

	f.BoolVar(&m.noColor, "no-color", false, "")
	f.BoolVar(&m.forceColor, "force-color", false, "")

	f.SetOutput(&uiErrorWriter{ui: m.Ui})

	return f
}

// AutocompleteFlags returns the flag completions shared by every command.
func (m *Meta) AutocompleteFlags() complete.Flags {
	return complete.Flags{
		"-no-color":    complete.PredictNothing,
		"-force-color": complete.PredictNothing,
	}
}

func (m *Meta) Colorize() *colorstring.Colorize {
	return &colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !m.useColor(),
		Reset:   true,
	}
}

func (m *Meta) useColor() bool {
	if m.noColor {
		return false
	}
	return m.forceColor || isTty()
}

// SetupUi inspects the arguments and environment for color settings and
// wraps the Ui so warnings and errors stand out on a terminal.
func (m *Meta) SetupUi(args []string) {
	noColor := os.Getenv(EnvCLINoColor) != ""
	forceColor := os.Getenv(EnvCLIForceColor) != ""

	for _, arg := range args {
		// Check if color is set
		if arg == "-no-color" || arg == "--no-color" {
			noColor = true
		} else if arg == "-force-color" || arg == "--force-color" {
			forceColor = true
		}
	}

	m.noColor = noColor
	m.forceColor = forceColor

	if m.useColor() {
		m.Ui = &cli.ColoredUi{
			ErrorColor: cli.UiColorRed,
			WarnColor:  cli.UiColorYellow,
			InfoColor:  cli.UiColorGreen,
			Ui:         m.Ui,
		}
	}
}

func isTty() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// generalOptionsUsage returns the help string for the global options.
func generalOptionsUsage() string {
	return `
  -no-color
    Disables colored command output. Alternatively, CPUPROBE_CLI_NO_COLOR may be
    set.

  -force-color
    Forces colored command output. This can be used in cases where the usual
    terminal detection fails. Alternatively, CPUPROBE_CLI_FORCE_COLOR may be set.
`
}
