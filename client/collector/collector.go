// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package collector polls CPU usage samplers at a fixed cadence and publishes
// their measurements as metrics.
package collector

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-set/v3"
)

var (
	percentKey     = []string{"process", "cpu", "total_percent"}
	unavailableKey = []string{"process", "cpu", "unavailable"}
	durationKey    = []string{"collector", "collect"}
)

// Sampler is a source of CPU usage percentages. The bool is false when the
// sampler has no measurement for the interval.
type Sampler interface {
	Percent() (float64, bool)
}

// resetter is implemented by samplers that keep a baseline between calls.
type resetter interface {
	Reset()
}

// MetricSink receives the published metrics. Satisfied by *metrics.Metrics.
type MetricSink interface {
	SetGaugeWithLabels(key []string, val float32, labels []metrics.Label)
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
	MeasureSince(key []string, start time.Time)
}

// Result is the outcome of sampling one probe.
type Result struct {
	Probe   string
	Percent float64
	OK      bool
}

type probe struct {
	name    string
	sampler Sampler
	labels  []metrics.Label

	// unavailable counts consecutive samples without data
	unavailable int
}

// Collector owns a set of samplers and is the only caller of them, so
// samplers that are not safe for concurrent use need no locking of their own.
type Collector struct {
	config *Config
	sink   MetricSink
	logger hclog.Logger

	// mu serializes registration and collection
	mu     sync.Mutex
	names  *set.Set[string]
	probes []*probe
	last   []Result
}

// New returns a Collector publishing to sink.
func New(logger hclog.Logger, sink MetricSink, config *Config) *Collector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Collector{
		config: config.Copy(),
		sink:   sink,
		logger: logger.Named("collector"),
		names:  set.New[string](1),
	}
}

// Register adds a sampler under name. Names must be unique. A sampler that
// keeps a baseline is reset so its first collection starts a new interval.
func (c *Collector) Register(name string, sampler Sampler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.names.Insert(name) {
		return fmt.Errorf("probe %q is already registered", name)
	}

	if r, ok := sampler.(resetter); ok {
		r.Reset()
	}

	c.probes = append(c.probes, &probe{
		name:    name,
		sampler: sampler,
		labels:  []metrics.Label{{Name: "probe", Value: name}},
	})
	return nil
}

// Probes returns the names of the registered probes in registration order.
func (c *Collector) Probes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.probes))
	for _, p := range c.probes {
		names = append(names, p.name)
	}
	return names
}

// Run collects on every interval until ctx is done. The first collection
// happens immediately.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Debug("starting collection", "interval", c.config.Interval)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.tick()

	for {
		select {
		case <-ticker.C:
			c.tick()
		case <-ctx.Done():
			c.logger.Debug("stopping collection")
			return
		}
	}
}

func (c *Collector) tick() {
	start := time.Now()
	c.CollectOnce()

	if elapsed := time.Since(start); elapsed > c.config.Interval {
		c.logger.Warn("collection took longer than the interval",
			"elapsed", elapsed, "interval", c.config.Interval)
	}
}

// CollectOnce samples every probe once and publishes the results.
// Unavailable samples are counted but never published as a percentage.
func (c *Collector) CollectOnce() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer c.sink.MeasureSince(durationKey, time.Now())

	results := make([]Result, 0, len(c.probes))
	for _, p := range c.probes {
		percent, ok := p.sampler.Percent()
		results = append(results, Result{Probe: p.name, Percent: percent, OK: ok})

		if !ok {
			c.unavailable(p)
			continue
		}

		c.recovered(p)
		c.sink.SetGaugeWithLabels(percentKey, float32(percent), p.labels)
		c.logger.Trace("sampled probe", "probe", p.name, "percent", percent)
	}

	c.last = results
	return results
}

// Last returns the results of the most recent collection.
func (c *Collector) Last() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.last)
}

func (c *Collector) unavailable(p *probe) {
	p.unavailable++
	c.sink.IncrCounterWithLabels(unavailableKey, 1, p.labels)

	threshold := c.config.UnavailableWarnThreshold
	if threshold > 0 && p.unavailable == threshold {
		c.logger.Warn("probe has not produced a measurement recently",
			"probe", p.name, "samples", p.unavailable)
	}
}

func (c *Collector) recovered(p *probe) {
	threshold := c.config.UnavailableWarnThreshold
	if threshold > 0 && p.unavailable >= threshold {
		c.logger.Info("probe is producing measurements again",
			"probe", p.name, "missed", p.unavailable)
	}
	p.unavailable = 0
}
