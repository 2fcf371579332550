// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/cpuprobe/command"
	"github.com/hashicorp/cpuprobe/version"
	colorable "github.com/mattn/go-colorable"
)

func main() {
	os.Exit(Run(os.Args[1:]))
}

func Run(args []string) int {
	return RunCustom(args, colorable.NewColorableStdout())
}

func RunCustom(args []string, helpWriter io.Writer) int {
	// Create the meta object
	metaPtr := new(command.Meta)
	metaPtr.SetupUi(args)

	// The agent never outputs color
	agentUi := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	commands := command.Commands(metaPtr, agentUi)
	cli := &cli.CLI{
		Name:                       "cpuprobe",
		Version:                    version.GetVersion().FullVersionNumber(true),
		Args:                       args,
		Commands:                   commands,
		Autocomplete:               true,
		AutocompleteNoDefaultFlags: true,
		HelpFunc:                   helpFunc(commands),
		HelpWriter:                 helpWriter,
	}

	exitCode, err := cli.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}

	return exitCode
}

// helpFunc lists every command with its synopsis.
func helpFunc(commands map[string]cli.CommandFactory) cli.HelpFunc {
	return func(map[string]cli.CommandFactory) string {
		var b strings.Builder
		b.WriteString("Usage: cpuprobe [-version] [-help] [-autocomplete-(un)install] <command> [args]\n\n")
		b.WriteString("Available commands are:\n")

		names := make([]string, 0, len(commands))
		maxLen := 0
		for name := range commands {
			names = append(names, name)
			if len(name) > maxLen {
				maxLen = len(name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			cmd, err := commands[name]()
			if err != nil {
				panic(fmt.Sprintf("failed to load %q command: %s", name, err))
			}
			fmt.Fprintf(&b, "    %s    %s\n", name+strings.Repeat(" ", maxLen-len(name)), cmd.Synopsis())
		}

		return b.String()
	}
}
