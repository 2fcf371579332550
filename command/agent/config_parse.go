// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
)

// LoadConfig loads the configuration at the given path, regardless if it's a
// file or directory. Files in a directory are merged in lexical order and
// only names ending in .hcl or .json are read.
func LoadConfig(path string) (*Config, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		return ParseConfigFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	var result *Config
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Ignore editor and hidden files
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		if ext := filepath.Ext(name); ext != ".hcl" && ext != ".json" {
			continue
		}

		config, err := ParseConfigFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}

		if result == nil {
			result = config
		} else {
			result = result.Merge(config)
		}
	}

	if result == nil {
		result = &Config{}
	}
	return result, nil
}

// ParseConfigFile returns an agent.Config parsed from a file.
func ParseConfigFile(path string) (*Config, error) {
	// slurp
	var buf bytes.Buffer
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}

	c, err := ParseConfig(buf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return c, nil
}

// ParseConfig parses an HCL or JSON document into a Config. Blocks that are
// absent in the document are left nil so Merge keeps the defaults.
func ParseConfig(doc string) (*Config, error) {
	c := &Config{}
	if err := hcl.Decode(c, doc); err != nil {
		return nil, fmt.Errorf("failed to decode HCL: %w", err)
	}

	// convert strings to time.Durations
	var tds []durationConversionMap
	if c.Telemetry != nil {
		tds = append(tds,
			durationConversionMap{"telemetry.collection_interval", &c.Telemetry.collectionInterval, &c.Telemetry.CollectionInterval},
			durationConversionMap{"telemetry.in_memory_collection_interval", &c.Telemetry.inMemoryInterval, &c.Telemetry.InMemoryInterval},
			durationConversionMap{"telemetry.in_memory_retention_period", &c.Telemetry.inMemoryRetention, &c.Telemetry.InMemoryRetention},
			durationConversionMap{"telemetry.prometheus_expiration", &c.Telemetry.prometheusExpiration, &c.Telemetry.PrometheusExpiration},
		)
	}
	if err := convertDurations(tds); err != nil {
		return nil, err
	}

	// report unexpected keys
	if err := extraKeys(c); err != nil {
		return nil, err
	}

	return c, nil
}

// durationConversionMap holds args for one duration conversion
type durationConversionMap struct {
	targetFieldPath string
	targetField     *time.Duration
	sourceField     *string
}

// convertDurations parses the duration strings specified in the config files
// into time.Durations
func convertDurations(xs []durationConversionMap) error {
	for _, x := range xs {
		if x.sourceField == nil || *x.sourceField == "" {
			continue
		}
		d, err := time.ParseDuration(*x.sourceField)
		if err != nil {
			return fmt.Errorf("%s can't parse time duration %s", x.targetFieldPath, *x.sourceField)
		}
		*x.targetField = d
	}
	return nil
}

// extraKeys returns an error naming every key hcl could not map onto the
// configuration.
func extraKeys(c *Config) error {
	var unused []string

	unused = append(unused, c.ExtraKeysHCL...)
	if c.Ports != nil {
		unused = append(unused, prefixKeys("ports", c.Ports.ExtraKeysHCL)...)
	}
	if c.Probe != nil {
		unused = append(unused, prefixKeys("probe", c.Probe.ExtraKeysHCL)...)
	}
	if c.Telemetry != nil {
		unused = append(unused, prefixKeys("telemetry", c.Telemetry.ExtraKeysHCL)...)
	}

	// hcl reports the block names themselves as unused when parsing JSON
	unused = removeKeys(unused, "ports", "probe", "telemetry")

	if len(unused) > 0 {
		return fmt.Errorf("unexpected keys %s", strings.Join(unused, ", "))
	}
	return nil
}

func prefixKeys(prefix string, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, prefix+"."+k)
	}
	return out
}

func removeKeys(keys []string, remove ...string) []string {
	out := keys[:0]
OUTER:
	for _, k := range keys {
		for _, r := range remove {
			if strings.EqualFold(k, r) {
				continue OUTER
			}
		}
		out = append(out, k)
	}
	return out
}
