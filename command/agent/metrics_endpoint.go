// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"net/http"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRequest returns the in-memory metrics as JSON, or the Prometheus
// exposition format when ?format=prometheus is given and Prometheus metrics
// are enabled.
func (s *HTTPServer) MetricsRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(405, ErrInvalidMethod)
	}

	if format := req.URL.Query().Get("format"); format == "prometheus" {
		if s.agent.promRegistry == nil {
			return nil, CodedError(400, "Prometheus is not enabled")
		}
		s.prometheusHandler().ServeHTTP(resp, req)
		return nil, nil
	}

	return s.agent.InmemSink.DisplayMetrics(resp, req)
}

func (s *HTTPServer) prometheusHandler() http.Handler {
	handlerOptions := promhttp.HandlerOpts{
		ErrorLog: s.logger.Named("prometheus_handler").StandardLogger(&hclog.StandardLoggerOptions{
			InferLevels: true,
		}),
		ErrorHandling:      promhttp.ContinueOnError,
		DisableCompression: true,
	}
	return promhttp.HandlerFor(s.agent.promRegistry, handlerOptions)
}
