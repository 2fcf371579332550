// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package stats

import (
	"errors"
	"fmt"
	"math"

	hclog "github.com/hashicorp/go-hclog"
)

const (
	// Unavailable is returned by Sample when no usage could be computed for
	// the interval. It is not a measurement of zero usage; callers that need
	// to tell the two apart should use Percent.
	Unavailable float64 = 0

	// unitScale reconciles nanoseconds of CPU time with milliseconds of
	// uptime so that one fully busy processing unit yields 100.
	unitScale = 10000

	// maxPercent is the upper bound of a computed usage.
	maxPercent = 99
)

// cpuSample is a reading of the two cumulative counters. A zero uptimeMs
// means no reading has been taken.
type cpuSample struct {
	uptimeMs  uint64
	cpuTimeNs uint64
}

// CpuUsageSampler converts the cumulative CPU time of a process into a
// percentage of the processing units available to it, over the interval
// since the previous call.
//
// A CpuUsageSampler is not safe for concurrent use. Callers must serialize
// calls to Sample, Percent and Reset.
type CpuUsageSampler struct {
	// platform is nil if the counters could not be opened, in which case
	// every sample is unavailable.
	platform Platform
	units    int

	prev cpuSample

	logger hclog.Logger
}

// NewCpuUsageSampler opens the platform counters once and returns a sampler
// reading from them. Failing to open the counters is logged and yields a
// sampler that always reports Unavailable.
func NewCpuUsageSampler(logger hclog.Logger, open PlatformOpener) *CpuUsageSampler {
	s := &CpuUsageSampler{
		units:  1,
		logger: logger.Named("cpu_usage"),
	}

	platform, units, err := openPlatform(open)
	if err != nil {
		s.logger.Error("failed to open process cpu counters, cpu usage will be unavailable", "error", err)
		return s
	}

	s.platform = platform
	s.units = units
	s.logger.Debug("opened process cpu counters", "processing_units", units)
	return s
}

// NewProcessCpuUsageSampler returns a sampler for the current process backed
// by the host platform.
func NewProcessCpuUsageSampler(logger hclog.Logger) *CpuUsageSampler {
	return NewCpuUsageSampler(logger, HostPlatformOpener())
}

func openPlatform(open PlatformOpener) (platform Platform, units int, err error) {
	if open == nil {
		return nil, 0, errors.New("no platform configured")
	}

	defer func() {
		if r := recover(); r != nil {
			platform, units, err = nil, 0, fmt.Errorf("panic opening platform: %v", r)
		}
	}()

	platform, err = open()
	if err != nil {
		return nil, 0, err
	}
	if platform == nil {
		return nil, 0, errors.New("platform opener returned no platform")
	}

	units = platform.AvailableProcessingUnits()
	if units < 1 {
		units = 1
	}
	return platform, units, nil
}

// Sample returns the CPU usage of the process since the previous call as a
// percentage in [0, 99], or Unavailable if it could not be computed.
func (s *CpuUsageSampler) Sample() float64 {
	percent, _ := s.Percent()
	return percent
}

// Percent is like Sample but reports whether the returned value is a
// measurement. The first call after construction or Reset is never a
// measurement; it only records the baseline for the next call.
func (s *CpuUsageSampler) Percent() (percent float64, ok bool) {
	if s.platform == nil {
		return Unavailable, false
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("recovered from panic while sampling cpu usage", "panic", r)
			percent, ok = Unavailable, false
		}
	}()

	curr, err := s.read()
	if err != nil {
		s.logger.Trace("failed to read process cpu counters", "error", err)
		return Unavailable, false
	}

	percent, ok = s.usage(curr)

	// the baseline moves on every successful read, measured or not
	s.prev = curr
	return percent, ok
}

func (s *CpuUsageSampler) read() (cpuSample, error) {
	uptime, err := s.platform.Uptime()
	if err != nil {
		return cpuSample{}, fmt.Errorf("failed to read uptime: %w", err)
	}

	cpuTime, err := s.platform.ProcessCpuTime()
	if err != nil {
		return cpuSample{}, fmt.Errorf("failed to read process cpu time: %w", err)
	}

	return cpuSample{uptimeMs: uptime, cpuTimeNs: cpuTime}, nil
}

// usage computes the percentage between the stored baseline and curr. It is
// not a measurement if there is no baseline or the uptime did not advance.
func (s *CpuUsageSampler) usage(curr cpuSample) (float64, bool) {
	if s.prev.uptimeMs == 0 || curr.uptimeMs <= s.prev.uptimeMs {
		return Unavailable, false
	}

	elapsedCpu := float64(int64(curr.cpuTimeNs) - int64(s.prev.cpuTimeNs))
	elapsedTime := float64(curr.uptimeMs - s.prev.uptimeMs)

	usage := elapsedCpu / (elapsedTime * unitScale * float64(s.units))

	// a cpu time counter that went backwards is clamped rather than
	// reported as negative usage
	return math.Max(0, math.Min(usage, maxPercent)), true
}

// Reset discards the baseline so the next call behaves like the first.
func (s *CpuUsageSampler) Reset() {
	s.prev = cpuSample{}
}

// Warm reports whether a baseline has been recorded.
func (s *CpuUsageSampler) Warm() bool {
	return s.prev.uptimeMs > 0
}

// Enabled reports whether the platform counters were opened.
func (s *CpuUsageSampler) Enabled() bool {
	return s.platform != nil
}

// ProcessingUnits returns the number of processing units usage is
// normalized over.
func (s *CpuUsageSampler) ProcessingUnits() int {
	return s.units
}
