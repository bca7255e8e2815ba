// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direct

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// GO negotiation needs both group formation and the follow-up DHCP exchange,
// so it gets a longer budget than plain callbacks.
const GroupFormationTimeout = 60 * time.Second

// WpsPbc selects push-button WPS for group formation.
const WpsPbc = 0

// ConnectConfig is the subset of WifiP2pConfig the suite drives.
type ConnectConfig struct {
	DeviceAddress    string `json:"deviceAddress"`
	GroupOwnerIntent int    `json:"groupOwnerIntent"`
	WpsSetup         int    `json:"wpsSetup"`
}

// ConnectionInfo mirrors WifiP2pInfo after group formation.
type ConnectionInfo struct {
	GroupFormed       bool
	IsGroupOwner      bool
	GroupOwnerAddress string
}

// Connect starts GO negotiation toward the peer at addr. intent is this
// device's group-owner intent, 0 through 15.
func (d *Device) Connect(ctx context.Context, addr string, intent int) error {
	cfg := ConnectConfig{DeviceAddress: addr, GroupOwnerIntent: intent, WpsSetup: WpsPbc}
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pConnect", cfg); err != nil {
		return errors.Wrapf(err, "failed to start GO negotiation with %s", addr)
	}
	return nil
}

// WaitForConnection waits until this device reports a formed p2p group and
// returns the resulting connection info.
func (d *Device) WaitForConnection(ctx context.Context) (*ConnectionInfo, error) {
	if d.p2pHandler == nil {
		return nil, errors.New("p2p channel is not initialized")
	}
	ev, err := d.p2pHandler.WaitForSnippetEvent(ctx, EventConnectionChanged, GroupFormationTimeout, func(ev *mobly.Event) bool {
		formed, _ := ev.Bool(KeyGroupFormed)
		return formed
	})
	if err != nil {
		return nil, errors.Wrap(err, "p2p group was not formed")
	}
	info := &ConnectionInfo{GroupFormed: true}
	info.IsGroupOwner, _ = ev.Bool(KeyIsGroupOwner)
	info.GroupOwnerAddress = ev.String(KeyGroupOwnerAddress)
	return info, nil
}

// Ping runs ping on the device toward addr, typically the group owner
// address over the formed p2p link, and fails on any packet loss.
func (d *Device) Ping(ctx context.Context, addr string) error {
	out, err := d.ADB.ShellOutput(ctx, "ping", "-c", "3", "-W", "5", addr)
	if err != nil {
		return errors.Wrapf(err, "ping to %s failed to run", addr)
	}
	d.Log.Infof("ping %s:\n%s", addr, out)
	tx, rx, err := parsePingStats(out)
	if err != nil {
		return err
	}
	if rx != tx {
		return errors.Errorf("ping to %s lost %d of %d packets", addr, tx-rx, tx)
	}
	return nil
}

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

// CreateGroup starts an autonomous group with this device as group owner.
// Unlike GO negotiation there is no peer; clients join afterwards.
func (d *Device) CreateGroup(ctx context.Context) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pCreateGroup"); err != nil {
		return errors.Wrap(err, "failed to create an autonomous group")
	}
	return nil
}

// JoinGroup connects to the existing group owned by the device at addr.
// Intent 0 keeps this side out of contention for the GO role.
func (d *Device) JoinGroup(ctx context.Context, addr string) error {
	if err := d.Connect(ctx, addr, 0); err != nil {
		return errors.Wrap(err, "failed to join the group")
	}
	return nil
}

// RemoveGroup tears down the current p2p group.
func (d *Device) RemoveGroup(ctx context.Context) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pRemoveGroup"); err != nil {
		return errors.Wrap(err, "failed to remove the p2p group")
	}
	return nil
}

// FormGroup runs GO negotiation between requester and responder and returns
// both sides' connection info. The requester initiates with the given
// group-owner intent while the responder accepts the incoming invitation.
func FormGroup(ctx context.Context, requester, responder *Device, requesterIntent int) (reqInfo, respInfo *ConnectionInfo, err error) {
	if err := responder.DiscoverPeers(ctx); err != nil {
		return nil, nil, err
	}
	if err := requester.DiscoverPeers(ctx); err != nil {
		return nil, nil, err
	}
	if err := requester.Connect(ctx, responder.Address, requesterIntent); err != nil {
		return nil, nil, err
	}
	if _, err := responder.Snippet.RPC(ctx, 0, "wifiP2pAcceptConnection"); err != nil {
		return nil, nil, errors.Wrap(err, "responder failed to accept the connection")
	}
	respInfo, err = responder.WaitForConnection(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "responder never saw the group form")
	}
	reqInfo, err = requester.WaitForConnection(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "requester never saw the group form")
	}
	return reqInfo, respInfo, nil
}

// CreateAndJoinGroup brings up an autonomous group on owner and joins client
// to it, returning both sides' connection info.
func CreateAndJoinGroup(ctx context.Context, owner, client *Device) (ownerInfo, clientInfo *ConnectionInfo, err error) {
	if err := owner.CreateGroup(ctx); err != nil {
		return nil, nil, err
	}
	ownerInfo, err = owner.WaitForConnection(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "owner never saw its group come up")
	}
	if err := client.DiscoverPeers(ctx); err != nil {
		return nil, nil, err
	}
	if err := client.JoinGroup(ctx, owner.Address); err != nil {
		return nil, nil, err
	}
	if _, err := owner.Snippet.RPC(ctx, 0, "wifiP2pAcceptConnection"); err != nil {
		return nil, nil, errors.Wrap(err, "owner failed to accept the join")
	}
	clientInfo, err = client.WaitForConnection(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "client never joined the group")
	}
	return ownerInfo, clientInfo, nil
}

// ValidateGroupRoles checks that exactly one side became group owner and that
// both sides agree on the group owner address.
func ValidateGroupRoles(reqInfo, respInfo *ConnectionInfo) error {
	if reqInfo.IsGroupOwner == respInfo.IsGroupOwner {
		return errors.Errorf("expected exactly one group owner, requester=%t responder=%t",
			reqInfo.IsGroupOwner, respInfo.IsGroupOwner)
	}
	if !strings.EqualFold(reqInfo.GroupOwnerAddress, respInfo.GroupOwnerAddress) {
		return errors.Errorf("group owner address mismatch: requester saw %s, responder saw %s",
			reqInfo.GroupOwnerAddress, respInfo.GroupOwnerAddress)
	}
	return nil
}
