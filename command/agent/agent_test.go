// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"runtime"
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

func testAgentConfig() *Config {
	conf := DefaultConfig()
	conf.Ports.HTTP = ci.PortAllocator.One()
	conf.Telemetry.SetCollectionInterval(20 * time.Millisecond)
	return conf
}

func newTestInmem() *metrics.InmemSink {
	return metrics.NewInmemSink(time.Hour, 2*time.Hour)
}

func processGauge(inm *metrics.InmemSink) (float32, bool) {
	var (
		value float32
		found bool
	)
	for _, interval := range inm.Data() {
		for _, g := range interval.Gauges {
			if g.Name != "cpuprobe.process.cpu.total_percent" {
				continue
			}
			for _, l := range g.Labels {
				if l.Name == "probe" && l.Value == processProbe {
					value, found = g.Value, true
				}
			}
		}
	}
	return value, found
}

func TestAgent_InvalidConfig(t *testing.T) {
	ci.Parallel(t)

	conf := testAgentConfig()
	conf.Probe.CounterSource = "jmx"

	_, err := NewAgent(conf, testlog.HCLogger(t), newTestInmem())
	must.ErrorContains(t, err, "invalid agent configuration")
}

func TestAgent_PublishesProcessUsage(t *testing.T) {
	ci.Parallel(t)

	for _, source := range stats.CounterSources {
		t.Run(source, func(t *testing.T) {
			if source == stats.CounterSourceRusage && runtime.GOOS == "windows" {
				t.Skip("getrusage is not available on windows")
			}

			inm := newTestInmem()
			conf := testAgentConfig()
			conf.Probe.CounterSource = source

			a, err := NewAgent(conf, testlog.HCLogger(t), inm)
			must.NoError(t, err)
			must.True(t, a.sampler.Enabled())
			must.Eq(t, []string{processProbe}, a.Collector().Probes())

			a.Start()
			t.Cleanup(func() { a.Shutdown() })

			must.Wait(t, wait.InitialSuccess(
				wait.BoolFunc(func() bool {
					_, found := processGauge(inm)
					return found
				}),
				wait.Timeout(10*time.Second),
				wait.Gap(20*time.Millisecond),
			))

			value, _ := processGauge(inm)
			must.Between(t, 0, float64(value), 99)
		})
	}
}

func TestAgent_Shutdown(t *testing.T) {
	ci.Parallel(t)

	a, err := NewAgent(testAgentConfig(), testlog.HCLogger(t), newTestInmem())
	must.NoError(t, err)

	a.Start()
	a.Start() // second call is a no-op

	must.NoError(t, a.Shutdown())
	must.NoError(t, a.Shutdown())

	select {
	case <-a.ShutdownCh():
	default:
		t.Fatal("expected shutdown channel to be closed")
	}

	// starting after shutdown does nothing
	a.Start()
	must.Nil(t, a.collectCancel)
}

func TestAgent_ShutdownWithoutStart(t *testing.T) {
	ci.Parallel(t)

	a, err := NewAgent(testAgentConfig(), testlog.HCLogger(t), newTestInmem())
	must.NoError(t, err)
	must.NoError(t, a.Shutdown())
}

func TestAgent_ExternalSinks(t *testing.T) {
	ci.Parallel(t)

	conf := testAgentConfig()
	conf.Telemetry.StatsdAddr = "127.0.0.1:8125"
	conf.Telemetry.StatsiteAddr = "127.0.0.1:8126"
	conf.Telemetry.PrometheusMetrics = true

	a, err := NewAgent(conf, testlog.HCLogger(t), newTestInmem())
	must.NoError(t, err)
	must.SliceLen(t, 3, a.sinks)
	must.NotNil(t, a.promRegistry)
	must.NoError(t, a.Shutdown())
}

func TestAgent_SetLogLevel(t *testing.T) {
	ci.Parallel(t)

	logger := testlog.HCLogger(t)
	a, err := NewAgent(testAgentConfig(), logger, newTestInmem())
	must.NoError(t, err)
	t.Cleanup(func() { a.Shutdown() })

	must.NoError(t, a.SetLogLevel("ERROR"))
	must.Eq(t, hclog.Error, logger.GetLevel())

	must.ErrorContains(t, a.SetLogLevel("LOUD"), "invalid log level")
	must.Eq(t, hclog.Error, logger.GetLevel())
}
