// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/cpuprobe/ci"
	"github.com/hashicorp/cpuprobe/client/stats"
	"github.com/shoenig/test/must"
)

func TestConfig_Parse(t *testing.T) {
	ci.Parallel(t)

	for _, file := range []string{"basic.hcl", "basic.json"} {
		t.Run(file, func(t *testing.T) {
			c, err := ParseConfigFile(filepath.Join("testdata", file))
			must.NoError(t, err)

			must.Eq(t, "DEBUG", c.LogLevel)
			must.True(t, c.LogJson)
			must.True(t, c.EnableSyslog)
			must.Eq(t, "LOCAL1", c.SyslogFacility)
			must.Eq(t, "0.0.0.0", c.BindAddr)
			must.True(t, c.EnableDebug)

			must.NotNil(t, c.Ports)
			must.Eq(t, 19646, c.Ports.HTTP)

			must.NotNil(t, c.Probe)
			must.Eq(t, stats.CounterSourceRusage, c.Probe.CounterSource)
			must.NotNil(t, c.Probe.UnavailableWarnThreshold)
			must.Eq(t, 0, *c.Probe.UnavailableWarnThreshold)

			tel := c.Telemetry
			must.NotNil(t, tel)
			must.Eq(t, "5s", tel.CollectionInterval)
			must.Eq(t, 5*time.Second, tel.collectionInterval)
			must.True(t, tel.DisableHostname)
			must.Eq(t, "127.0.0.1:8125", tel.StatsdAddr)
			must.Eq(t, "127.0.0.1:8126", tel.StatsiteAddr)
			must.True(t, tel.PrometheusMetrics)
			must.Eq(t, 30*time.Second, tel.inMemoryInterval)
			must.Eq(t, 5*time.Minute, tel.inMemoryRetention)
			must.Eq(t, 2*time.Minute, tel.prometheusExpiration)

			must.NoError(t, DefaultConfig().Merge(c).Validate())
		})
	}
}

func TestConfig_ParsePartial(t *testing.T) {
	ci.Parallel(t)

	c, err := ParseConfigFile(filepath.Join("testdata", "partial.hcl"))
	must.NoError(t, err)
	must.Nil(t, c.Ports)
	must.Nil(t, c.Probe)

	merged := DefaultConfig().Merge(c)
	must.NoError(t, merged.Validate())
	must.Eq(t, "WARN", merged.LogLevel)
	must.False(t, merged.EnableSyslog)
	must.Eq(t, "LOCAL0", merged.SyslogFacility)
	must.Eq(t, 9646, merged.Ports.HTTP)
	must.Eq(t, stats.CounterSourceGopsutil, merged.Probe.CounterSource)
	must.Eq(t, 250*time.Millisecond, merged.Telemetry.collectionInterval)
	must.Eq(t, 10*time.Second, merged.Telemetry.inMemoryInterval)
}

func TestConfig_ParseErrors(t *testing.T) {
	ci.Parallel(t)

	cases := []struct {
		file string
		err  string
	}{
		{file: "unknown-key.hcl", err: "probe.smoothing"},
		{file: "bad-duration.hcl", err: "telemetry.collection_interval can't parse time duration often"},
		{file: "does-not-exist.hcl", err: "no such file"},
	}

	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			_, err := ParseConfigFile(filepath.Join("testdata", tc.file))
			must.ErrorContains(t, err, tc.err)
		})
	}
}

func TestConfig_ParseUnknownKeys(t *testing.T) {
	ci.Parallel(t)

	cases := []struct {
		name   string
		config string
		err    string
	}{
		{name: "top level", config: `bogus = 1`, err: "unexpected keys bogus"},
		{name: "probe", config: `probe { smoothing = "ema" }`, err: "unexpected keys probe.smoothing"},
		{name: "telemetry", config: `telemetry { colection_interval = "5s" }`, err: "unexpected keys telemetry.colection_interval"},
		{name: "ports", config: `ports { htp = 1 }`, err: "unexpected keys ports.htp"},
		{name: "json", config: `{"probe": {"smoothing": "ema"}}`, err: "unexpected keys probe.smoothing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := ParseConfig(tc.config)
			must.ErrorContains(t, err, tc.err)
			must.Nil(t, c)
		})
	}
}

func TestConfig_ParseInvalidHCL(t *testing.T) {
	ci.Parallel(t)

	_, err := ParseConfig(`telemetry {`)
	must.ErrorContains(t, err, "failed to decode HCL")
}

func TestConfig_LoadDir(t *testing.T) {
	ci.Parallel(t)

	c, err := LoadConfig(filepath.Join("testdata", "dir"))
	must.NoError(t, err)

	// later files win
	must.Eq(t, "ERROR", c.LogLevel)
	must.Eq(t, 19700, c.Ports.HTTP)
	must.Eq(t, stats.CounterSourceRusage, c.Probe.CounterSource)
	must.Eq(t, 2*time.Second, c.Telemetry.collectionInterval)
}

func TestConfig_LoadEmptyDir(t *testing.T) {
	ci.Parallel(t)

	c, err := LoadConfig(t.TempDir())
	must.NoError(t, err)
	must.NoError(t, DefaultConfig().Merge(c).Validate())
}
