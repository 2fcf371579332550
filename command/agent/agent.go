// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/cpuprobe/client/collector"
	"github.com/hashicorp/cpuprobe/client/stats"
	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	promsink "github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// processProbe is the name the agent's own CPU usage is published under
	processProbe = "process"
)

// Agent is a long running daemon that samples the CPU usage of its own
// process and publishes it to the configured telemetry sinks.
type Agent struct {
	config *Config

	logger     hclog.InterceptLogger
	httpLogger hclog.Logger

	// InmemSink keeps recent metrics for the /v1/metrics endpoint.
	InmemSink *metrics.InmemSink

	// metrics is the emitter every sink is fanned out from. It is owned by
	// the agent rather than installed globally so several agents can run
	// in one process.
	metrics *metrics.Metrics

	// sinks are the external sinks, shut down with the agent
	sinks metrics.FanoutSink

	// promRegistry is nil unless Prometheus metrics are enabled.
	promRegistry *prometheus.Registry

	sampler   *stats.CpuUsageSampler
	collector *collector.Collector

	collectCancel context.CancelFunc
	collectDone   chan struct{}

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewAgent is used to create a new agent with the given configuration. The
// agent does not sample until Start is called.
func NewAgent(config *Config, logger hclog.InterceptLogger, inmem *metrics.InmemSink) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent configuration: %w", err)
	}

	a := &Agent{
		config:     config,
		logger:     logger,
		httpLogger: logger.ResetNamed("http"),
		InmemSink:  inmem,
		shutdownCh: make(chan struct{}),
	}

	if err := a.setupTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	if err := a.setupCollector(); err != nil {
		return nil, err
	}

	return a, nil
}

// setupTelemetry fans the collector's metrics out to the in-memory sink and
// every configured external sink.
func (a *Agent) setupTelemetry() error {
	telConfig := a.config.Telemetry

	metricsConf := metrics.DefaultConfig("cpuprobe")
	metricsConf.EnableHostname = !telConfig.DisableHostname
	metricsConf.EnableRuntimeMetrics = false

	var fanout metrics.FanoutSink

	// Configure the statsite sink
	if telConfig.StatsiteAddr != "" {
		sink, err := metrics.NewStatsiteSink(telConfig.StatsiteAddr)
		if err != nil {
			return err
		}
		fanout = append(fanout, sink)
	}

	// Configure the statsd sink
	if telConfig.StatsdAddr != "" {
		sink, err := metrics.NewStatsdSink(telConfig.StatsdAddr)
		if err != nil {
			return err
		}
		fanout = append(fanout, sink)
	}

	// Configure the prometheus sink
	if telConfig.PrometheusMetrics {
		registry := prometheus.NewRegistry()
		sink, err := promsink.NewPrometheusSinkFrom(promsink.PrometheusOpts{
			Expiration: telConfig.prometheusExpiration,
			Registerer: registry,
		})
		if err != nil {
			return err
		}
		a.promRegistry = registry
		fanout = append(fanout, sink)
	}

	var (
		m   *metrics.Metrics
		err error
	)
	a.sinks = fanout

	if len(fanout) > 0 {
		fanout = append(fanout, a.InmemSink)
		m, err = metrics.New(metricsConf, fanout)
	} else {
		metricsConf.EnableHostname = false
		m, err = metrics.New(metricsConf, a.InmemSink)
	}
	if err != nil {
		return err
	}

	a.metrics = m
	a.logger.Debug("telemetry configured",
		"statsite", telConfig.StatsiteAddr != "",
		"statsd", telConfig.StatsdAddr != "",
		"prometheus", telConfig.PrometheusMetrics)
	return nil
}

// setupCollector opens the process counters selected by the configuration
// and registers the sampler with a new collector.
func (a *Agent) setupCollector() error {
	source := a.config.Probe.CounterSource
	opener := stats.OpenerFor(source)
	if opener == nil {
		return fmt.Errorf("unknown counter source %q", source)
	}

	a.sampler = stats.NewCpuUsageSampler(a.logger, opener)
	if !a.sampler.Enabled() {
		a.logger.Warn("process cpu usage will not be published", "counter_source", source)
	}

	a.collector = collector.New(a.logger, a.metrics, a.config.CollectorConfig())
	return a.collector.Register(processProbe, a.sampler)
}

// Start begins periodic collection. It is a no-op if the agent is already
// collecting or has been shut down.
func (a *Agent) Start() {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()

	if a.shutdown || a.collectDone != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.collectCancel = cancel
	a.collectDone = make(chan struct{})

	go func() {
		defer close(a.collectDone)
		a.collector.Run(ctx)
	}()

	a.logger.Info("agent started",
		"counter_source", a.config.Probe.CounterSource,
		"interval", a.config.Telemetry.collectionInterval,
		"processing_units", a.sampler.ProcessingUnits())
}

// Shutdown stops collection and waits for the collection goroutine to exit.
func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()

	if a.shutdown {
		return nil
	}

	a.logger.Info("requesting shutdown")
	if a.collectCancel != nil {
		a.collectCancel()
		<-a.collectDone
	}

	// flush and stop the external sinks
	for _, sink := range a.sinks {
		if ss, ok := sink.(metrics.ShutdownSink); ok {
			ss.Shutdown()
		}
	}

	a.logger.Info("shutdown complete")
	a.shutdown = true
	close(a.shutdownCh)
	return nil
}

// ShutdownCh is closed once the agent has shut down.
func (a *Agent) ShutdownCh() <-chan struct{} {
	return a.shutdownCh
}

// Config returns the agent's configuration.
func (a *Agent) Config() *Config {
	return a.config
}

// Collector returns the collector polling the agent's probes.
func (a *Agent) Collector() *collector.Collector {
	return a.collector
}

// SetLogLevel changes the level of the agent's logger and every logger
// derived from it.
func (a *Agent) SetLogLevel(level string) error {
	if !ValidateLevel(level) {
		return fmt.Errorf("invalid log level %q", level)
	}
	a.logger.SetLevel(LevelFromString(level))
	return nil
}
