// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/cpuprobe/client/stats"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/posener/complete"
)

const (
	// defaultSampleInterval is the time between two printed samples
	defaultSampleInterval = time.Second

	// unavailableOutput is printed for a sample without data
	unavailableOutput = "unavailable"
)

// SampleCommand prints the CPU usage of its own process on a fixed interval.
type SampleCommand struct {
	Meta

	// ShutdownCh stops sampling early when closed.
	ShutdownCh <-chan struct{}
}

func (c *SampleCommand) Help() string {
	helpText := `
Usage: cpuprobe sample [options]

  Samples the CPU usage of the cpuprobe process itself and prints one
  percentage per interval. The percentage is normalized over every
  processing unit of the host and capped at 99. The first sample only
  records a baseline and is not printed.

  Samples without data, for example when the process counters can not be
  read, are printed as "unavailable".

General Options:
  ` + generalOptionsUsage() + `
Sample Options:

  -interval=<duration>
    The time between two samples. The default is 1s.

  -count=<n>
    The number of samples to print. Zero keeps sampling until
    interrupted. The default is 5.

  -counter-source=<source>
    Where process counters are read from, "gopsutil" or "rusage".
    The default is gopsutil.

  -verbose
    Print the sampler configuration before the samples.
`
	return strings.TrimSpace(helpText)
}

func (c *SampleCommand) Synopsis() string {
	return "Print the CPU usage of the cpuprobe process"
}

func (c *SampleCommand) AutocompleteFlags() complete.Flags {
	return mergeAutocompleteFlags(c.Meta.AutocompleteFlags(),
		complete.Flags{
			"-interval":       complete.PredictAnything,
			"-count":          complete.PredictAnything,
			"-counter-source": complete.PredictSet(stats.CounterSources...),
			"-verbose":        complete.PredictNothing,
		})
}

func (c *SampleCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *SampleCommand) Name() string { return "sample" }

func (c *SampleCommand) Run(args []string) int {
	var (
		interval time.Duration
		count    int
		source   string
		verbose  bool
	)

	flags := c.Meta.FlagSet(c.Name())
	flags.Usage = func() { c.Ui.Output(c.Help()) }
	flags.DurationVar(&interval, "interval", defaultSampleInterval, "")
	flags.IntVar(&count, "count", 5, "")
	flags.StringVar(&source, "counter-source", stats.CounterSourceGopsutil, "")
	flags.BoolVar(&verbose, "verbose", false, "")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	// Check that we got no arguments
	if len(flags.Args()) != 0 {
		c.Ui.Error("This command takes no arguments")
		c.Ui.Error(commandErrorText(c))
		return 1
	}

	if interval <= 0 {
		c.Ui.Error("The -interval flag must be positive")
		return 1
	}
	if count < 0 {
		c.Ui.Error("The -count flag must not be negative")
		return 1
	}

	opener := stats.OpenerFor(source)
	if opener == nil {
		c.Ui.Error(fmt.Sprintf("Unknown counter source %q, must be one of %s",
			source, strings.Join(stats.CounterSources, ", ")))
		return 1
	}

	errWriter := &uiErrorWriter{ui: c.Ui}
	defer errWriter.Close()
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "cpuprobe",
		Level:  hclog.Warn,
		Output: errWriter,
	})

	sampler := stats.NewCpuUsageSampler(logger, opener)

	if verbose {
		c.Ui.Output(formatKV([]string{
			fmt.Sprintf("Counter Source|%s", source),
			fmt.Sprintf("Processing Units|%d", sampler.ProcessingUnits()),
			fmt.Sprintf("Interval|%s", interval),
			fmt.Sprintf("Enabled|%t", sampler.Enabled()),
		}))
		c.Ui.Output("")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return c.sample(ctx, sampler, interval, count)
}

// sample records the baseline then prints count samples, or samples until
// ctx is done when count is zero.
func (c *SampleCommand) sample(ctx context.Context, sampler *stats.CpuUsageSampler, interval time.Duration, count int) int {
	sampler.Percent()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for printed := 0; count == 0 || printed < count; printed++ {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return 0
		case <-c.ShutdownCh:
			return 0
		}

		percent, ok := sampler.Percent()
		if !ok {
			c.Ui.Output(c.Colorize().Color("[yellow]" + unavailableOutput))
			continue
		}
		c.Ui.Output(formatPercent(percent))
	}
	return 0
}
