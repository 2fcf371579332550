// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package version reports the build of the cpuprobe binary.
package version

import (
	"fmt"
	"strings"
	"time"
)

// Set through -ldflags at build time.
var (
	// GitCommit is the revision the binary was built from.
	GitCommit string

	// BuildDate is the commit time in RFC3339 format.
	BuildDate string
)

var (
	// Version is the release number.
	Version = "0.1.0"

	// VersionPrerelease marks a build that is not a final release, such as
	// "dev" or "rc1". Empty for releases.
	VersionPrerelease = "dev"
)

// VersionInfo describes the build of the running binary.
type VersionInfo struct {
	BuildDate         time.Time
	Revision          string
	Version           string
	VersionPrerelease string
}

// GetVersion returns the build information of this binary. An unparsable
// BuildDate is left as the zero time.
func GetVersion() *VersionInfo {
	built, _ := time.Parse(time.RFC3339, BuildDate)
	return &VersionInfo{
		BuildDate:         built,
		Revision:          GitCommit,
		Version:           Version,
		VersionPrerelease: VersionPrerelease,
	}
}

// VersionNumber returns the semantic version, e.g. "0.1.0-dev".
func (v *VersionInfo) VersionNumber() string {
	if v.VersionPrerelease == "" {
		return v.Version
	}
	return v.Version + "-" + v.VersionPrerelease
}

// FullVersionNumber returns the version banner printed by the version
// command. The revision is included when rev is set and known.
func (v *VersionInfo) FullVersionNumber(rev bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cpuprobe v%s", v.VersionNumber())

	if !v.BuildDate.IsZero() {
		fmt.Fprintf(&sb, "\nBuildDate %s", v.BuildDate.Format(time.RFC3339))
	}
	if rev && v.Revision != "" {
		fmt.Fprintf(&sb, "\nRevision %s", v.Revision)
	}
	return sb.String()
}
