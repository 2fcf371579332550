// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"

	"github.com/hashicorp/cpuprobe/client/collector"
	"github.com/hashicorp/cpuprobe/version"
)

type agentSelf struct {
	Config *Config                      `json:"config"`
	Probes []collector.Result           `json:"probes"`
	Stats  map[string]map[string]string `json:"stats"`
}

func (s *HTTPServer) AgentSelfRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}

	self := agentSelf{
		Config: s.agent.Config(),
		Probes: s.agent.Collector().Last(),
		Stats: map[string]map[string]string{
			"sampler": {
				"enabled":          strconv.FormatBool(s.agent.sampler.Enabled()),
				"processing_units": strconv.Itoa(s.agent.sampler.ProcessingUnits()),
				"counter_source":   s.agent.config.Probe.CounterSource,
			},
			"runtime": {
				"version":    runtime.Version(),
				"goroutines": strconv.Itoa(runtime.NumGoroutine()),
				"max_procs":  strconv.Itoa(runtime.GOMAXPROCS(0)),
			},
			"build": {
				"version":  version.GetVersion().VersionNumber(),
				"revision": version.GetVersion().Revision,
			},
		},
	}
	return self, nil
}

// HealthRequest reports whether the agent is able to measure process CPU
// usage. It fails with a 500 when the process counters could not be opened.
func (s *HTTPServer) HealthRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}

	health := healthResponse{
		Sampler: &healthResponseAgent{
			Ok:      true,
			Message: "ok",
		},
	}

	if !s.agent.sampler.Enabled() {
		health.Sampler.Ok = false
		health.Sampler.Message = "process cpu counters are unavailable"
	}

	if health.ok() {
		return &health, nil
	}

	jsonResp, err := json.Marshal(&health)
	if err != nil {
		return nil, err
	}
	return nil, CodedError(500, string(jsonResp))
}

type healthResponse struct {
	Sampler *healthResponseAgent `json:"sampler,omitempty"`
}

// ok returns true as long as Sampler does not have Ok=false.
func (h healthResponse) ok() bool {
	return h.Sampler == nil || h.Sampler.Ok
}

type healthResponseAgent struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
