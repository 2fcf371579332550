// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/cpuprobe/ci"
	"github.com/hashicorp/cpuprobe/client/stats"
	"github.com/hashicorp/cpuprobe/helper/testlog"
	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/shoenig/test/must"
	"github.com/shoenig/test/wait"
)

// scriptedSampler returns the queued results in order, then reports no data.
type scriptedSampler struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

func (s *scriptedSampler) Percent() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.results) == 0 {
		return stats.Unavailable, false
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.Percent, r.OK
}

func (s *scriptedSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestSink(t *testing.T) (*metrics.Metrics, *metrics.InmemSink) {
	inm := metrics.NewInmemSink(time.Hour, 2*time.Hour)
	conf := metrics.DefaultConfig("cpuprobe")
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false

	m, err := metrics.New(conf, inm)
	must.NoError(t, err)
	return m, inm
}

func gauge(inm *metrics.InmemSink, name, probe string) (float32, bool) {
	var (
		value float32
		found bool
	)
	for _, interval := range inm.Data() {
		for _, g := range interval.Gauges {
			if g.Name == name && hasLabel(g.Labels, "probe", probe) {
				value, found = g.Value, true
			}
		}
	}
	return value, found
}

func counter(inm *metrics.InmemSink, name, probe string) int {
	count := 0
	for _, interval := range inm.Data() {
		for _, c := range interval.Counters {
			if c.Name == name && hasLabel(c.Labels, "probe", probe) {
				count += c.Count
			}
		}
	}
	return count
}

func hasLabel(labels []metrics.Label, name, value string) bool {
	for _, l := range labels {
		if l.Name == name && l.Value == value {
			return true
		}
	}
	return false
}

func TestCollector_Register(t *testing.T) {
	ci.Parallel(t)

	m, _ := newTestSink(t)
	c := New(testlog.HCLogger(t), m, nil)

	must.NoError(t, c.Register("process", &scriptedSampler{}))
	must.NoError(t, c.Register("sidecar", &scriptedSampler{}))
	must.ErrorContains(t, c.Register("process", &scriptedSampler{}), "already registered")
	must.Eq(t, []string{"process", "sidecar"}, c.Probes())
}

func TestCollector_CollectOnce(t *testing.T) {
	ci.Parallel(t)

	m, inm := newTestSink(t)
	c := New(testlog.HCLogger(t), m, DefaultConfig())

	sampler := &scriptedSampler{results: []Result{
		{OK: false},
		{Percent: 42.5, OK: true},
	}}
	must.NoError(t, c.Register("process", sampler))

	results := c.CollectOnce()
	must.Eq(t, []Result{{Probe: "process", OK: false}}, results)

	// nothing is published for a sample without data
	_, found := gauge(inm, "cpuprobe.process.cpu.total_percent", "process")
	must.False(t, found)
	must.Eq(t, 1, counter(inm, "cpuprobe.process.cpu.unavailable", "process"))

	results = c.CollectOnce()
	must.Eq(t, []Result{{Probe: "process", Percent: 42.5, OK: true}}, results)

	value, found := gauge(inm, "cpuprobe.process.cpu.total_percent", "process")
	must.True(t, found)
	must.Eq(t, float32(42.5), value)
	must.Eq(t, 1, counter(inm, "cpuprobe.process.cpu.unavailable", "process"))
}

func TestCollector_UnavailableWarning(t *testing.T) {
	ci.Parallel(t)

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Level:  hclog.Info,
		Output: &buf,
	})

	m, inm := newTestSink(t)
	c := New(logger, m, &Config{Interval: time.Second, UnavailableWarnThreshold: 3})

	sampler := &scriptedSampler{results: []Result{
		{}, {}, {}, {}, {},
		{Percent: 1, OK: true},
	}}
	must.NoError(t, c.Register("process", sampler))

	for i := 0; i < 6; i++ {
		c.CollectOnce()
	}

	out := buf.String()
	must.Eq(t, 1, strings.Count(out, "probe has not produced a measurement recently"))
	must.StrContains(t, out, "probe is producing measurements again")
	must.Eq(t, 5, counter(inm, "cpuprobe.process.cpu.unavailable", "process"))
}

// slowSampler takes longer than a collection interval to answer.
type slowSampler struct {
	delay time.Duration
}

func (s slowSampler) Percent() (float64, bool) {
	time.Sleep(s.delay)
	return 1, true
}

func TestCollector_TickOverrun(t *testing.T) {
	ci.Parallel(t)

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Level:  hclog.Warn,
		Output: &buf,
	})

	m, _ := newTestSink(t)
	c := New(logger, m, &Config{Interval: 5 * time.Millisecond})
	must.NoError(t, c.Register("slow", slowSampler{delay: 20 * time.Millisecond}))

	c.tick()
	must.StrContains(t, buf.String(), "collection took longer than the interval")

	// the overrunning collection still publishes its result
	must.Eq(t, []Result{{Probe: "slow", Percent: 1, OK: true}}, c.Last())
}

func TestCollector_TickWithinInterval(t *testing.T) {
	ci.Parallel(t)

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Level:  hclog.Warn,
		Output: &buf,
	})

	m, _ := newTestSink(t)
	c := New(logger, m, &Config{Interval: time.Minute})
	must.NoError(t, c.Register("fast", slowSampler{}))

	c.tick()
	must.StrNotContains(t, buf.String(), "collection took longer than the interval")
}

func TestCollector_Run(t *testing.T) {
	ci.Parallel(t)

	m, inm := newTestSink(t)
	c := New(testlog.HCLogger(t), m, &Config{Interval: 10 * time.Millisecond})

	sampler := &scriptedSampler{results: []Result{
		{}, {Percent: 7, OK: true},
	}}
	must.NoError(t, c.Register("process", sampler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	must.Wait(t, wait.InitialSuccess(
		wait.BoolFunc(func() bool { return sampler.Calls() >= 3 }),
		wait.Timeout(5*time.Second),
		wait.Gap(10*time.Millisecond),
	))

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}

	value, found := gauge(inm, "cpuprobe.process.cpu.total_percent", "process")
	must.True(t, found)
	must.Eq(t, float32(7), value)
}

func TestCollector_WithCpuUsageSampler(t *testing.T) {
	ci.Parallel(t)

	m, inm := newTestSink(t)
	c := New(testlog.HCLogger(t), m, nil)

	opener := func() (stats.Platform, error) {
		return nil, context.DeadlineExceeded
	}
	sampler := stats.NewCpuUsageSampler(testlog.HCLogger(t), opener)
	must.NoError(t, c.Register("process", sampler))

	for i := 0; i < 3; i++ {
		results := c.CollectOnce()
		must.SliceLen(t, 1, results)
		must.False(t, results[0].OK)
	}
	must.Eq(t, 3, counter(inm, "cpuprobe.process.cpu.unavailable", "process"))
}

type resettableSampler struct {
	scriptedSampler
	resets int
}

func (s *resettableSampler) Reset() {
	s.resets++
}

func TestCollector_RegisterResets(t *testing.T) {
	ci.Parallel(t)

	m, _ := newTestSink(t)
	c := New(testlog.HCLogger(t), m, nil)

	sampler := &resettableSampler{}
	must.NoError(t, c.Register("process", sampler))
	must.Eq(t, 1, sampler.resets)

	// a rejected registration leaves the sampler alone
	must.Error(t, c.Register("process", sampler))
	must.Eq(t, 1, sampler.resets)
}

func TestCollector_Last(t *testing.T) {
	ci.Parallel(t)

	m, _ := newTestSink(t)
	c := New(testlog.HCLogger(t), m, nil)
	must.SliceEmpty(t, c.Last())

	must.NoError(t, c.Register("process", &scriptedSampler{results: []Result{
		{Percent: 12.5, OK: true},
	}}))

	c.CollectOnce()
	last := c.Last()
	must.Eq(t, []Result{{Probe: "process", Percent: 12.5, OK: true}}, last)

	// callers get a copy
	last[0].Percent = 99
	must.Eq(t, 12.5, c.Last()[0].Percent)
}
