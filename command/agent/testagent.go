// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/cpuprobe/ci"
	"github.com/hashicorp/cpuprobe/helper/testlog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/shoenig/test/must"
	"github.com/shoenig/test/wait"
)

// TestAgent encapsulates an Agent with a default configuration and
// startup procedure suitable for testing. The agent listens on a free
// port of the loopback interface.
type TestAgent struct {
	// T is the testing object
	T testing.TB

	// Name is an optional name of the agent.
	Name string

	// ConfigCallback is an optional callback that allows modification of the
	// configuration before the agent is started.
	ConfigCallback func(*Config)

	// Config is the agent configuration. If Config is nil then
	// DefaultConfig() is used.
	Config *Config

	// Server is a reference to the started HTTP endpoint.
	Server *HTTPServer

	// All HTTP requests are sent to this address.
	HTTPAddr string

	// Agent is the embedded cpuprobe agent.
	*Agent
}

// NewTestAgent returns a started agent with the given name and
// configuration. The caller should call Shutdown() to stop the agent.
func NewTestAgent(t testing.TB, name string, configCallback func(*Config)) *TestAgent {
	a := &TestAgent{
		T:              t,
		Name:           name,
		ConfigCallback: configCallback,
	}

	a.Start()
	return a
}

// Start starts a test agent.
func (a *TestAgent) Start() *TestAgent {
	if a.Agent != nil {
		a.T.Fatalf("TestAgent already started")
	}

	if a.Config == nil {
		a.Config = a.config()
	}
	if a.ConfigCallback != nil {
		a.ConfigCallback(a.Config)
	}

	inm := metrics.NewInmemSink(a.Config.Telemetry.inMemoryInterval, a.Config.Telemetry.inMemoryRetention)

	agent, err := NewAgent(a.Config, testlog.HCLogger(a.T), inm)
	must.NoError(a.T, err)
	a.Agent = agent

	srv, err := NewHTTPServer(agent, a.Config)
	if err != nil {
		agent.Shutdown()
		a.T.Fatalf("failed to start http server: %v", err)
	}
	a.Server = srv
	a.HTTPAddr = "http://" + srv.Addr

	agent.Start()

	// the listener is bound before NewHTTPServer returns, wait for Serve
	must.Wait(a.T, wait.InitialSuccess(
		wait.ErrorFunc(func() error {
			resp, err := http.Get(a.HTTPAddr + "/v1/agent/self")
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return nil
		}),
		wait.Timeout(5*time.Second),
		wait.Gap(20*time.Millisecond),
	))

	return a
}

// Shutdown stops the agent and the HTTP server.
func (a *TestAgent) Shutdown() {
	if a.Server != nil {
		a.Server.Shutdown()
	}
	if a.Agent != nil {
		a.Agent.Shutdown()
	}
}

// config returns a configuration suitable for a test agent, sampling
// every 50ms on a free loopback port.
func (a *TestAgent) config() *Config {
	conf := DefaultConfig()
	conf.LogLevel = "DEBUG"
	conf.BindAddr = "127.0.0.1"
	conf.Ports.HTTP = ci.PortAllocator.One()
	conf.EnableDebug = true
	conf.Telemetry.SetCollectionInterval(50 * time.Millisecond)
	conf.Telemetry.DisableHostname = true

	// keep every sample in a single in-memory interval
	conf.Telemetry.InMemoryInterval = "1h"
	conf.Telemetry.inMemoryInterval = time.Hour
	conf.Telemetry.InMemoryRetention = "2h"
	conf.Telemetry.inMemoryRetention = 2 * time.Hour
	return conf
}
