// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// ServerSocketAccept opens a server socket on the device and returns the
// correlation id used as the network request handle on both ends of the NDP.
func (d *Device) ServerSocketAccept(ctx context.Context) (string, error) {
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "connectivityServerSocketAccept")
	if err != nil {
		return "", errors.Wrap(err, "server socket accept failed")
	}
	if res.Callback == "" {
		return "", errors.New("server socket accept returned no handle")
	}
	return res.Callback, nil
}

// DataPathSecurity selects the NDP security configuration. Zero value means
// an open data path.
type DataPathSecurity struct {
	Passphrase string
	PMK        string
}

// RequestNetwork requests an in-band Aware network on top of an established
// discovery session and returns the handler delivering the network callbacks.
func (s *DiscoverySession) RequestNetwork(ctx context.Context, peerID int, sec DataPathSecurity, networkID string) (*mobly.CallbackHandler, error) {
	res, err := s.dev.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout,
		"wifiAwareCreateNetworkSpecifier", s.ID, peerID, orNil(sec.Passphrase), orNil(sec.PMK))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create network specifier")
	}
	return s.dev.requestNetwork(ctx, res.Result, networkID)
}

// RequestOobNetwork requests an Aware network using out-of-band discovery:
// no prior publish/subscribe, just the attach session and the peer's
// discovery MAC.
func (a *AttachSession) RequestOobNetwork(ctx context.Context, role int, peerMAC string, sec DataPathSecurity, networkID string) (*mobly.CallbackHandler, error) {
	res, err := a.dev.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout,
		"wifiAwareCreateNetworkSpecifierOob", a.ID, role, peerMAC, orNil(sec.Passphrase), orNil(sec.PMK))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create OOB network specifier")
	}
	return a.dev.requestNetwork(ctx, res.Result, networkID)
}

func (d *Device) requestNetwork(ctx context.Context, specifierParcel json.RawMessage, networkID string) (*mobly.CallbackHandler, error) {
	req := NetworkRequest{
		TransportType:          TransportWifiAware,
		NetworkSpecifierParcel: specifierParcel,
	}
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout,
		"connectivityRequestNetwork", networkID, req, NetworkRequestTimeout.Milliseconds())
	if err != nil {
		return nil, errors.Wrap(err, "network request failed")
	}
	return res.EventHandler(d.Snippet)
}

// WaitForNetwork waits for the network capabilities callback of an NDP
// request. When expectedChannelMhz is non-zero the event's channel must match.
func WaitForNetwork(ctx context.Context, h *mobly.CallbackHandler, expectedChannelMhz int) (*mobly.Event, error) {
	ev, err := h.WaitAndGet(ctx, EventNetworkCapabilities, NetworkRequestTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "data path was not established (no capabilities callback)")
	}
	if expectedChannelMhz != 0 {
		ch, ok := ev.Int(KeyChannelMhz)
		if !ok {
			return nil, errors.New("capabilities event carried no channel")
		}
		if ch != expectedChannelMhz {
			return nil, errors.Errorf("unexpected channel: got %d MHz, want %d MHz", ch, expectedChannelMhz)
		}
	}
	return ev, nil
}

// WaitForLink waits for the link properties callback and returns the Aware
// data interface name.
func WaitForLink(ctx context.Context, h *mobly.CallbackHandler) (string, *mobly.Event, error) {
	ev, err := h.WaitAndGet(ctx, EventNetworkLink, NetworkRequestTimeout)
	if err != nil {
		return "", nil, errors.Wrap(err, "no link properties callback")
	}
	iface := ev.String(KeyInterfaceName)
	if iface == "" {
		return "", nil, errors.New("link properties event carried no interface name")
	}
	return iface, ev, nil
}

// LinkLocalIPv6 returns the device's link-local IPv6 address on the given
// Aware data interface, without any scope suffix.
func (d *Device) LinkLocalIPv6(ctx context.Context, iface string) (string, error) {
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout,
		"connectivityGetLinkLocalIpv6Address", iface)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read link-local address of %s", iface)
	}
	var addr string
	if err := res.Unmarshal(&addr); err != nil {
		return "", err
	}
	// The framework reports fe80::...%ifname; the scope is re-added by the
	// ping helper on the sending side.
	addr, _, _ = strings.Cut(addr, "%")
	if addr == "" {
		return "", errors.Errorf("no link-local address on %s", iface)
	}
	return addr, nil
}

// UnregisterNetwork releases a network request by its handle.
func (d *Device) UnregisterNetwork(ctx context.Context, networkID string) error {
	_, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout,
		"connectivityUnregisterNetwork", networkID)
	return errors.Wrap(err, "failed to unregister network")
}

// orNil maps the empty string onto a JSON null so the snippet sees a missing
// optional rather than an empty passphrase.
func orNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
