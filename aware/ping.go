// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var pingStatsPattern = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)

// parsePingStats extracts transmitted/received counts from ping output.
func parsePingStats(out string) (tx, rx int, err error) {
	m := pingStatsPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, errors.Errorf("no ping statistics in output: %q", out)
	}
	tx, _ = strconv.Atoi(m[1])
	rx, _ = strconv.Atoi(m[2])
	return tx, rx, nil
}

// Ping6 runs ping6 on the device towards the peer's link-local address over
// the given Aware data interface and fails on any packet loss. The ping
// executes on the device itself; an NDP link is not visible to the host.
func (d *Device) Ping6(ctx context.Context, peerIPv6, iface string) error {
	dest := peerIPv6 + "%" + iface
	out, err := d.ADB.ShellOutput(ctx, "ping6", "-c", "3", "-W", "5", dest)
	if err != nil {
		return errors.Wrapf(err, "ping6 to %s failed to run", dest)
	}
	d.Log.Infof("ping6 %s:\n%s", dest, out)
	tx, rx, err := parsePingStats(out)
	if err != nil {
		return err
	}
	if rx != tx {
		return errors.Errorf("ping6 to %s lost %d of %d packets", dest, tx-rx, tx)
	}
	return nil
}
