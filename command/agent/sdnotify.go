// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"github.com/coreos/go-systemd/v22/daemon"
	hclog "github.com/hashicorp/go-hclog"
)

// These constants are for readiness signalling via the systemd notify protocol.
// Sending is a no-op unless the agent runs under systemd with Type=notify.
// See also https://www.man7.org/linux/man-pages/man3/sd_notify.3.html
const (
	sdReady     = daemon.SdNotifyReady
	sdReloading = daemon.SdNotifyReloading
	sdStopping  = daemon.SdNotifyStopping
)

// sdNotify tells the service manager about a state change of the agent.
func sdNotify(logger hclog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("failed to notify service manager", "state", state, "error", err)
		return
	}
	if sent {
		logger.Debug("notified service manager", "state", state)
	}
}
