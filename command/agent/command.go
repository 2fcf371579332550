// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/cpuprobe/client/stats"
	flaghelper "github.com/hashicorp/cpuprobe/helper/flags"
	"github.com/hashicorp/cpuprobe/helper/logging"
	"github.com/hashicorp/cpuprobe/version"
	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/posener/complete"
)

// gracefulTimeout controls how long we wait before forcefully terminating
const gracefulTimeout = 5 * time.Second

// Command is a Command implementation that runs a cpuprobe agent.
// The command will not end unless a shutdown message is sent on the
// ShutdownCh. If two messages are sent on the ShutdownCh it will forcibly
// exit.
type Command struct {
	Version    *version.VersionInfo
	Ui         cli.Ui
	ShutdownCh <-chan struct{}

	args        []string
	configPaths []string
	agent       *Agent
	httpServer  *HTTPServer
	logger      hclog.InterceptLogger
	logOutput   io.Writer
}

func (c *Command) readConfig() *Config {
	var configPath []string

	// Make a new, empty config.
	cmdConfig := &Config{
		Ports:     &Ports{},
		Probe:     &ProbeConfig{},
		Telemetry: &Telemetry{},
	}

	flags := flag.NewFlagSet("agent", flag.ContinueOnError)
	flags.Usage = func() { c.Ui.Error(c.Help()) }
	flags.SetOutput(io.Discard)

	flags.Var((*flaghelper.StringFlag)(&configPath), "config", "config")
	flags.StringVar(&cmdConfig.LogLevel, "log-level", "", "")
	flags.BoolVar(&cmdConfig.LogJson, "log-json", false, "")
	flags.BoolVar(&cmdConfig.EnableSyslog, "syslog", false, "")
	flags.StringVar(&cmdConfig.BindAddr, "bind", "", "")
	flags.IntVar(&cmdConfig.Ports.HTTP, "http-port", 0, "")
	flags.StringVar(&cmdConfig.Probe.CounterSource, "counter-source", "", "")
	flags.Var((flaghelper.FuncDurationVar)(func(d time.Duration) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cmdConfig.Telemetry.SetCollectionInterval(d)
		return nil
	}), "interval", "")

	if err := flags.Parse(c.args); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			c.Ui.Error(err.Error())
		}
		return nil
	}

	if args := flags.Args(); len(args) > 0 {
		c.Ui.Error(fmt.Sprintf("Unexpected arguments: %s", strings.Join(args, " ")))
		c.Ui.Error(commandErrorText(c))
		return nil
	}

	// Load the configuration
	config := DefaultConfig()

	for _, path := range configPath {
		current, err := LoadConfig(path)
		if err != nil {
			c.Ui.Error(fmt.Sprintf(
				"Error loading configuration from %s: %s", path, err))
			return nil
		}
		config = config.Merge(current)
	}

	// Merge any CLI options over config file options
	config = config.Merge(cmdConfig)

	if err := config.Validate(); err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid configuration: %s", err))
		return nil
	}

	c.configPaths = configPath
	return config
}

// setupLoggers builds the agent's root logger. Log lines are written to the
// Ui unless an output was supplied, and to syslog when enabled.
func (c *Command) setupLoggers(config *Config) (hclog.InterceptLogger, error) {
	if c.logOutput == nil {
		c.logOutput = &cli.UiWriter{Ui: c.Ui}
	}

	output := c.logOutput
	if config.EnableSyslog {
		syslog, err := newSyslogWriter(config.SyslogFacility)
		if err != nil {
			return nil, fmt.Errorf("syslog setup failed: %w", err)
		}
		output = io.MultiWriter(c.logOutput, syslog)
	}

	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:       "agent",
		Level:      LevelFromString(config.LogLevel),
		Output:     output,
		JSONFormat: config.LogJson,
	}), nil
}

// setupTelemetry creates the in-memory sink served by /v1/metrics. Sending
// SIGUSR1 to the agent dumps its contents to stderr.
func (c *Command) setupTelemetry(config *Config) *metrics.InmemSink {
	telConfig := config.Telemetry
	inm := metrics.NewInmemSink(telConfig.inMemoryInterval, telConfig.inMemoryRetention)
	metrics.DefaultInmemSignal(inm)
	return inm
}

func (c *Command) setupAgent(config *Config, logger hclog.InterceptLogger, inmem *metrics.InmemSink) error {
	c.Ui.Output("Starting cpuprobe agent...")

	agent, err := NewAgent(config, logger, inmem)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error starting agent: %s", err))
		return err
	}
	c.agent = agent

	http, err := NewHTTPServer(agent, config)
	if err != nil {
		agent.Shutdown()
		c.Ui.Error(fmt.Sprintf("Error starting http server: %s", err))
		return err
	}
	c.httpServer = http

	agent.Start()
	return nil
}

func (c *Command) AutocompleteFlags() complete.Flags {
	configFilePredictor := complete.PredictOr(
		complete.PredictFiles("*.json"),
		complete.PredictFiles("*.hcl"))

	return map[string]complete.Predictor{
		"-config":         configFilePredictor,
		"-log-level":      complete.PredictSet("TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"),
		"-log-json":       complete.PredictNothing,
		"-syslog":         complete.PredictNothing,
		"-bind":           complete.PredictAnything,
		"-http-port":      complete.PredictAnything,
		"-interval":       complete.PredictAnything,
		"-counter-source": complete.PredictSet(stats.CounterSources...),
	}
}

func (c *Command) AutocompleteArgs() complete.Predictor {
	return nil
}

func (c *Command) Run(args []string) int {
	ui := &cli.PrefixedUi{
		OutputPrefix: "==> ",
		InfoPrefix:   "    ",
		ErrorPrefix:  "==> ",
		Ui:           c.Ui,
	}
	c.Ui = ui

	// Parse our configs
	c.args = args
	config := c.readConfig()
	if config == nil {
		return 1
	}

	logger, err := c.setupLoggers(config)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	c.logger = logger

	// Swap our UI implementation out for one that logs with the agent's
	// logger when JSON logging is enabled
	if config.LogJson {
		c.Ui = &logging.HcLogUI{Log: logger}
	}

	// Log config files
	if len(c.configPaths) > 0 {
		c.Ui.Output(fmt.Sprintf("Loaded configuration from %s", strings.Join(c.configPaths, ", ")))
	} else {
		c.Ui.Output("No configuration files loaded")
	}

	inmem := c.setupTelemetry(config)

	// Create the agent
	if err := c.setupAgent(config, logger, inmem); err != nil {
		return 1
	}

	defer func() {
		c.httpServer.Shutdown()
		c.agent.Shutdown()
	}()

	// Compile agent information for output later
	info := make(map[string]string)
	info["version"] = c.versionNumber()
	info["log level"] = config.LogLevel
	info["bind addrs"] = c.httpServer.Addr
	info["counter source"] = config.Probe.CounterSource
	info["interval"] = config.Telemetry.collectionInterval.String()
	info["processing units"] = fmt.Sprintf("%d", c.agent.sampler.ProcessingUnits())

	// Sort the keys for output
	infoKeys := make([]string, 0, len(info))
	for key := range info {
		infoKeys = append(infoKeys, key)
	}
	sort.Strings(infoKeys)

	// Agent configuration output
	padding := 18
	c.Ui.Output("cpuprobe agent configuration:\n")
	for _, k := range infoKeys {
		c.Ui.Info(fmt.Sprintf(
			"%s%s: %s",
			strings.Repeat(" ", padding-len(k)),
			strings.Title(k),
			info[k]))
	}
	c.Ui.Output("")

	// Output the header that the agent has started
	c.Ui.Output("cpuprobe agent started! Log data will stream in below:\n")
	sdNotify(logger, sdReady)

	// Wait for exit
	return c.handleSignals()
}

func (c *Command) versionNumber() string {
	if c.Version == nil {
		return version.GetVersion().VersionNumber()
	}
	return c.Version.VersionNumber()
}

// handleSignals blocks until we get an exit-causing signal
func (c *Command) handleSignals() int {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE)
	defer signal.Stop(signalCh)

	// Wait for a signal
WAIT:
	var sig os.Signal
	select {
	case s := <-signalCh:
		sig = s
	case <-c.ShutdownCh:
		sig = os.Interrupt
	}

	// Skip any SIGPIPE signal and don't try to log it
	if sig == syscall.SIGPIPE {
		goto WAIT
	}

	c.Ui.Output(fmt.Sprintf("Caught signal: %v", sig))

	// Check if this is a SIGHUP
	if sig == syscall.SIGHUP {
		c.handleReload()
		goto WAIT
	}

	// Attempt a graceful shutdown
	c.Ui.Output("Gracefully shutting down agent...")
	sdNotify(c.logger, sdStopping)
	gracefulCh := make(chan struct{})
	go func() {
		c.httpServer.Shutdown()
		if err := c.agent.Shutdown(); err != nil {
			c.Ui.Error(fmt.Sprintf("Error: %s", err))
			return
		}
		close(gracefulCh)
	}()

	// Wait for shutdown or another signal
	select {
	case <-signalCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

// handleReload is invoked when we should reload our configs, e.g. SIGHUP.
// Only the log level can change without a restart.
func (c *Command) handleReload() {
	c.Ui.Output("Reloading configuration...")
	sdNotify(c.logger, sdReloading)
	defer sdNotify(c.logger, sdReady)

	newConf := c.readConfig()
	if newConf == nil {
		c.Ui.Error("Failed to reload configs")
		return
	}

	if err := c.agent.SetLogLevel(newConf.LogLevel); err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to reload log level: %s", err))
		return
	}
	c.logger.Info("reloaded log level", "level", newConf.LogLevel)
}

func (c *Command) Synopsis() string {
	return "Runs a cpuprobe agent"
}

func (c *Command) Help() string {
	helpText := `
Usage: cpuprobe agent [options]

  Starts the cpuprobe agent and runs until an interrupt is received.
  The agent samples the CPU usage of its own process on a fixed interval
  and publishes it to the configured telemetry sinks.

  The agent's configuration primarily comes from the config files used,
  but a subset of the options may also be passed directly as CLI arguments,
  listed below.

General Options:

  -config=<path>
    The path to either a single config file or a directory of config
    files to use for configuring the agent. This option may be
    specified multiple times. If multiple config files are used, the
    values from each will be merged together. During merging, values
    from files found later in the list are merged over values from
    previously parsed files.

  -log-level=<level>
    Specify the verbosity level of the agent's logs. Valid values include
    TRACE, DEBUG, INFO, WARN, ERROR and OFF, in decreasing order of
    verbosity. The default is INFO.

  -log-json
    Output logs in a JSON format. The default is false.

  -syslog
    Enables logging to syslog. This option only works on Unix based
    systems.

  -bind=<addr>
    The address the HTTP API binds to. The default is 127.0.0.1.

  -http-port=<port>
    The port the HTTP API listens on. The default is 9646.

Probe Options:

  -interval=<duration>
    The time between two samples, for example "1s" or "250ms".
    The default is 1s.

  -counter-source=<source>
    Where process counters are read from. One of "gopsutil", which reads
    the process accounting of the host, or "rusage", which asks the kernel
    for the resource usage of the calling process. The default is gopsutil.
 `
	return strings.TrimSpace(helpText)
}

func commandErrorText(cmd *Command) string {
	return "For additional help try 'cpuprobe agent -help'"
}
