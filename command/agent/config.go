// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/cpuprobe/client/collector"
	"github.com/hashicorp/cpuprobe/client/stats"
	"github.com/hashicorp/cpuprobe/helper/pointer"
	"github.com/hashicorp/go-multierror"
)

// Config is the configuration for the cpuprobe agent.
type Config struct {
	// LogLevel is the level of the logs to put out
	LogLevel string `hcl:"log_level"`

	// LogJson enables log output in a JSON format
	LogJson bool `hcl:"log_json"`

	// EnableSyslog is used to enable sending logs to syslog
	EnableSyslog bool `hcl:"enable_syslog"`

	// SyslogFacility is used to control the syslog facility used.
	SyslogFacility string `hcl:"syslog_facility"`

	// BindAddr is the address on which the HTTP API is bound. Defaults to
	// 127.0.0.1.
	BindAddr string `hcl:"bind_addr"`

	// EnableDebug is used to enable debugging HTTP endpoints
	EnableDebug bool `hcl:"enable_debug"`

	// Ports is used to control the network ports we bind to.
	Ports *Ports `hcl:"ports"`

	// Probe configures how process CPU usage is sampled.
	Probe *ProbeConfig `hcl:"probe"`

	// Telemetry is used to configure sending telemetry
	Telemetry *Telemetry `hcl:"telemetry"`

	// ExtraKeysHCL is used by hcl to surface unexpected keys
	ExtraKeysHCL []string `hcl:",unusedKeys" json:"-"`
}

// Ports encapsulates the various ports we bind to for network services.
type Ports struct {
	HTTP int `hcl:"http"`

	ExtraKeysHCL []string `hcl:",unusedKeys" json:"-"`
}

// ProbeConfig configures the process CPU usage sampler.
type ProbeConfig struct {
	// CounterSource selects where process counters are read from, one of
	// stats.CounterSources.
	CounterSource string `hcl:"counter_source"`

	// UnavailableWarnThreshold is the number of consecutive samples without
	// data after which a warning is logged. Zero disables the warning.
	UnavailableWarnThreshold *int `hcl:"unavailable_warn_threshold"`

	ExtraKeysHCL []string `hcl:",unusedKeys" json:"-"`
}

// Telemetry is the telemetry configuration for the agent.
type Telemetry struct {
	// CollectionInterval is the time between two samples of every probe.
	CollectionInterval   string        `hcl:"collection_interval"`
	collectionInterval   time.Duration `hcl:"-"`
	DisableHostname      bool          `hcl:"disable_hostname"`
	StatsiteAddr         string        `hcl:"statsite_address"`
	StatsdAddr           string        `hcl:"statsd_address"`
	PrometheusMetrics    bool          `hcl:"prometheus_metrics"`
	InMemoryInterval     string        `hcl:"in_memory_collection_interval"`
	inMemoryInterval     time.Duration `hcl:"-"`
	InMemoryRetention    string        `hcl:"in_memory_retention_period"`
	inMemoryRetention    time.Duration `hcl:"-"`
	PrometheusExpiration string        `hcl:"prometheus_expiration"`
	prometheusExpiration time.Duration `hcl:"-"`

	ExtraKeysHCL []string `hcl:",unusedKeys" json:"-"`
}

// DefaultConfig is the baseline configuration for the agent.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "INFO",
		SyslogFacility: "LOCAL0",
		BindAddr:       "127.0.0.1",
		Ports: &Ports{
			HTTP: 9646,
		},
		Probe: &ProbeConfig{
			CounterSource:            stats.CounterSourceGopsutil,
			UnavailableWarnThreshold: pointer.Of(5),
		},
		Telemetry: &Telemetry{
			CollectionInterval:   "1s",
			collectionInterval:   1 * time.Second,
			InMemoryInterval:     "10s",
			inMemoryInterval:     10 * time.Second,
			InMemoryRetention:    "1m",
			inMemoryRetention:    1 * time.Minute,
			PrometheusExpiration: "1m",
			prometheusExpiration: 1 * time.Minute,
		},
	}
}

// Merge merges two configurations. Values set in b take precedence.
func (c *Config) Merge(b *Config) *Config {
	result := *c

	if b.LogLevel != "" {
		result.LogLevel = b.LogLevel
	}
	if b.LogJson {
		result.LogJson = true
	}
	if b.EnableSyslog {
		result.EnableSyslog = true
	}
	if b.SyslogFacility != "" {
		result.SyslogFacility = b.SyslogFacility
	}
	if b.BindAddr != "" {
		result.BindAddr = b.BindAddr
	}
	if b.EnableDebug {
		result.EnableDebug = true
	}

	// Apply the ports config
	if result.Ports == nil && b.Ports != nil {
		ports := *b.Ports
		result.Ports = &ports
	} else if b.Ports != nil {
		result.Ports = result.Ports.Merge(b.Ports)
	}

	// Apply the probe config
	if result.Probe == nil && b.Probe != nil {
		probe := *b.Probe
		result.Probe = &probe
	} else if b.Probe != nil {
		result.Probe = result.Probe.Merge(b.Probe)
	}

	// Apply the telemetry config
	if result.Telemetry == nil && b.Telemetry != nil {
		telemetry := *b.Telemetry
		result.Telemetry = &telemetry
	} else if b.Telemetry != nil {
		result.Telemetry = result.Telemetry.Merge(b.Telemetry)
	}

	return &result
}

// Merge is used to merge two port configurations.
func (p *Ports) Merge(b *Ports) *Ports {
	result := *p
	if b.HTTP != 0 {
		result.HTTP = b.HTTP
	}
	return &result
}

// Merge is used to merge two probe configurations.
func (p *ProbeConfig) Merge(b *ProbeConfig) *ProbeConfig {
	result := *p
	if b.CounterSource != "" {
		result.CounterSource = b.CounterSource
	}
	if b.UnavailableWarnThreshold != nil {
		result.UnavailableWarnThreshold = pointer.Copy(b.UnavailableWarnThreshold)
	}
	return &result
}

// Merge is used to merge two telemetry configurations.
func (t *Telemetry) Merge(b *Telemetry) *Telemetry {
	result := *t
	if b.CollectionInterval != "" {
		result.CollectionInterval = b.CollectionInterval
	}
	if b.collectionInterval != 0 {
		result.collectionInterval = b.collectionInterval
	}
	if b.DisableHostname {
		result.DisableHostname = true
	}
	if b.StatsiteAddr != "" {
		result.StatsiteAddr = b.StatsiteAddr
	}
	if b.StatsdAddr != "" {
		result.StatsdAddr = b.StatsdAddr
	}
	if b.PrometheusMetrics {
		result.PrometheusMetrics = true
	}
	if b.InMemoryInterval != "" {
		result.InMemoryInterval = b.InMemoryInterval
	}
	if b.inMemoryInterval != 0 {
		result.inMemoryInterval = b.inMemoryInterval
	}
	if b.InMemoryRetention != "" {
		result.InMemoryRetention = b.InMemoryRetention
	}
	if b.inMemoryRetention != 0 {
		result.inMemoryRetention = b.inMemoryRetention
	}
	if b.PrometheusExpiration != "" {
		result.PrometheusExpiration = b.PrometheusExpiration
	}
	if b.prometheusExpiration != 0 {
		result.prometheusExpiration = b.prometheusExpiration
	}
	return &result
}

// SetCollectionInterval sets both the parsed and the textual interval.
func (t *Telemetry) SetCollectionInterval(d time.Duration) {
	t.CollectionInterval = d.String()
	t.collectionInterval = d
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() error {
	var mErr multierror.Error

	if !ValidateLevel(c.LogLevel) {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid log level %q", c.LogLevel))
	}

	if c.BindAddr != "" && net.ParseIP(c.BindAddr) == nil {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("bind_addr %q is not an IP address", c.BindAddr))
	}

	if c.Ports == nil {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("missing ports"))
	} else if c.Ports.HTTP < 1 || c.Ports.HTTP > 65535 {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("ports.http %d is out of range", c.Ports.HTTP))
	}

	if c.Probe == nil {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("missing probe"))
	} else {
		if !slices.Contains(stats.CounterSources, c.Probe.CounterSource) {
			mErr.Errors = append(mErr.Errors, fmt.Errorf(
				"probe.counter_source %q must be one of %v", c.Probe.CounterSource, stats.CounterSources))
		}
		if t := c.Probe.UnavailableWarnThreshold; t != nil && *t < 0 {
			mErr.Errors = append(mErr.Errors, fmt.Errorf(
				"probe.unavailable_warn_threshold must not be negative, got %d", *t))
		}
	}

	if c.Telemetry == nil {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("missing telemetry"))
	} else {
		if c.Telemetry.collectionInterval <= 0 {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("telemetry.collection_interval must be positive"))
		}
		if c.Telemetry.inMemoryInterval <= 0 {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("telemetry.in_memory_collection_interval must be positive"))
		}
		if c.Telemetry.inMemoryRetention < c.Telemetry.inMemoryInterval {
			mErr.Errors = append(mErr.Errors, fmt.Errorf(
				"telemetry.in_memory_retention_period must be at least the in memory collection interval"))
		}
	}

	return mErr.ErrorOrNil()
}

// CollectorConfig converts the agent configuration for the collector.
func (c *Config) CollectorConfig() *collector.Config {
	conf := collector.DefaultConfig()
	conf.Interval = c.Telemetry.collectionInterval
	if c.Probe.UnavailableWarnThreshold != nil {
		conf.UnavailableWarnThreshold = *c.Probe.UnavailableWarnThreshold
	}
	return conf
}

// HTTPAddr returns the address the HTTP API listens on.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Ports.HTTP))
}
