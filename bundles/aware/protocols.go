// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"
	"time"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/aware"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

type protocolsParam struct {
	// oob selects out-of-band pairing (attach sessions and MACs, no
	// publish/subscribe) instead of in-band discovery.
	oob           bool
	publishType   aware.PublishType
	subscribeType aware.SubscribeType
}

func init() {
	harness.AddTest(&harness.Test{
		Func:     Protocols,
		Name:     "aware.Protocols",
		Desc:     "An open NDP comes up and carries IPv6 traffic in both directions",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "awareDevices",
		Timeout:  10 * time.Minute,
		Params: []harness.Param{
			{
				Name: "ib_unsolicited_passive",
				Val:  protocolsParam{publishType: aware.PublishTypeUnsolicited, subscribeType: aware.SubscribeTypePassive},
			},
			{
				Name: "ib_solicited_active",
				Val:  protocolsParam{publishType: aware.PublishTypeSolicited, subscribeType: aware.SubscribeTypeActive},
			},
			{
				Name: "oob",
				Val:  protocolsParam{oob: true},
			},
		},
	})
}

// ndpEndpoint is one side of an established data path.
type ndpEndpoint struct {
	dev   *aware.Device
	iface string
	ipv6  string
}

func Protocols(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	p := s.Param().(protocolsParam)

	var a, b ndpEndpoint
	var netID string
	var err error
	if p.oob {
		a, b, netID, err = createOobNdp(ctx, td.Publisher(), td.Subscriber())
	} else {
		a, b, netID, err = createIbNdp(ctx, td.Publisher(), td.Subscriber(), p.publishType, p.subscribeType)
	}
	if err != nil {
		s.Fatal("Failed to establish the data path: ", err)
	}
	defer unregisterNetworks(ctx, s, netID, a, b)
	s.Logf("NDP up: %s/%s on %s, %s/%s on %s",
		a.iface, a.ipv6, a.dev.ADB.Serial, b.iface, b.ipv6, b.dev.ADB.Serial)

	if err := a.dev.Ping6(ctx, b.ipv6, a.iface); err != nil {
		s.Error("Ping toward the responder failed: ", err)
	}
	if err := b.dev.Ping6(ctx, a.ipv6, b.iface); err != nil {
		s.Error("Ping toward the initiator failed: ", err)
	}
}

// unregisterNetworks releases the network requests on both sides so the NDP
// tears down before the next case.
func unregisterNetworks(ctx context.Context, s *harness.State, netID string, eps ...ndpEndpoint) {
	for _, ep := range eps {
		if err := ep.dev.UnregisterNetwork(ctx, netID); err != nil {
			s.Logf("Failed to unregister the network on %s: %v", ep.dev.ADB.Serial, err)
		}
	}
}

// resolveEndpoint waits for one side's network callbacks and reads the data
// interface's link-local address.
func resolveEndpoint(ctx context.Context, d *aware.Device, h *mobly.CallbackHandler) (ndpEndpoint, error) {
	if _, err := aware.WaitForNetwork(ctx, h, 0); err != nil {
		return ndpEndpoint{}, err
	}
	iface, _, err := aware.WaitForLink(ctx, h)
	if err != nil {
		return ndpEndpoint{}, err
	}
	addr, err := d.LinkLocalIPv6(ctx, iface)
	if err != nil {
		return ndpEndpoint{}, err
	}
	return ndpEndpoint{dev: d, iface: iface, ipv6: addr}, nil
}

// createIbNdp establishes an in-band, open NDP on top of discovery: publish
// on pub, subscribe on sub, then request the network from both sides against
// a server socket opened on the publisher.
func createIbNdp(ctx context.Context, pub, sub *aware.Device, pt aware.PublishType, st aware.SubscribeType) (ndpEndpoint, ndpEndpoint, string, error) {
	const serviceName = "GoogleTestServiceDataPath"
	pair, err := aware.CreateDiscoveryPair(ctx, pub, sub,
		aware.DefaultPublishConfig(serviceName, pt),
		aware.DefaultSubscribeConfig(serviceName, st),
		aware.DeviceStartupOffset)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}

	netID, err := pub.ServerSocketAccept(ctx)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	open := aware.DataPathSecurity{}
	pubH, err := pair.PubSession.RequestNetwork(ctx, pair.PeerIDOnPub, open, netID)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	subH, err := pair.SubSession.RequestNetwork(ctx, pair.PeerIDOnSub, open, netID)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}

	pubEp, err := resolveEndpoint(ctx, pub, pubH)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	subEp, err := resolveEndpoint(ctx, sub, subH)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	return pubEp, subEp, netID, nil
}

// createOobNdp establishes an out-of-band, open NDP: both sides attach, the
// discovery MACs cross over out of band (through the host), and the network
// is requested with explicit initiator/responder roles against a server
// socket opened on the initiator.
func createOobNdp(ctx context.Context, init, resp *aware.Device) (ndpEndpoint, ndpEndpoint, string, error) {
	iAttach, err := init.Attach(ctx)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}

	// Stagger NAN enablement, then wait out cluster merge so both devices
	// share a discovery window schedule.
	select {
	case <-time.After(aware.DeviceStartupOffset):
	case <-ctx.Done():
		return ndpEndpoint{}, ndpEndpoint{}, "", ctx.Err()
	}
	rAttach, err := resp.Attach(ctx)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	select {
	case <-time.After(aware.ClusterSyncWait):
	case <-ctx.Done():
		return ndpEndpoint{}, ndpEndpoint{}, "", ctx.Err()
	}

	netID, err := init.ServerSocketAccept(ctx)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	open := aware.DataPathSecurity{}
	respH, err := rAttach.RequestOobNetwork(ctx, aware.DataPathResponder, iAttach.MAC, open, netID)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	initH, err := iAttach.RequestOobNetwork(ctx, aware.DataPathInitiator, rAttach.MAC, open, netID)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}

	initEp, err := resolveEndpoint(ctx, init, initH)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	respEp, err := resolveEndpoint(ctx, resp, respH)
	if err != nil {
		return ndpEndpoint{}, ndpEndpoint{}, "", err
	}
	return initEp, respEp, netID, nil
}
