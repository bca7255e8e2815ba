// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"
	"time"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/aware"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
)

func init() {
	harness.AddTest(&harness.Test{
		Func:     DataPathSecure,
		Name:     "aware.DataPathSecure",
		Desc:     "A passphrase-protected NDP comes up and carries traffic",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "awareDevices",
		Timeout:  10 * time.Minute,
	})
}

func DataPathSecure(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	pub := td.Publisher()
	sub := td.Subscriber()

	const serviceName = "GoogleTestServiceSecure"
	pair, err := aware.CreateDiscoveryPair(ctx, pub, sub,
		aware.DefaultPublishConfig(serviceName, aware.PublishTypeUnsolicited),
		aware.DefaultSubscribeConfig(serviceName, aware.SubscribeTypePassive),
		aware.DeviceStartupOffset)
	if err != nil {
		s.Fatal("Failed to establish discovery: ", err)
	}

	netID, err := pub.ServerSocketAccept(ctx)
	if err != nil {
		s.Fatal("Failed to open the server socket: ", err)
	}
	sec := aware.DataPathSecurity{Passphrase: "correct horse battery staple"}
	pubH, err := pair.PubSession.RequestNetwork(ctx, pair.PeerIDOnPub, sec, netID)
	if err != nil {
		s.Fatal("Publisher network request failed: ", err)
	}
	subH, err := pair.SubSession.RequestNetwork(ctx, pair.PeerIDOnSub, sec, netID)
	if err != nil {
		s.Fatal("Subscriber network request failed: ", err)
	}

	pubEp, err := resolveEndpoint(ctx, pub, pubH)
	if err != nil {
		s.Fatal("Publisher data path did not come up: ", err)
	}
	subEp, err := resolveEndpoint(ctx, sub, subH)
	if err != nil {
		s.Fatal("Subscriber data path did not come up: ", err)
	}
	defer unregisterNetworks(ctx, s, netID, pubEp, subEp)
	s.Logf("Secure NDP up: %s on %s, %s on %s",
		pubEp.iface, pub.ADB.Serial, subEp.iface, sub.ADB.Serial)

	if err := subEp.dev.Ping6(ctx, pubEp.ipv6, subEp.iface); err != nil {
		s.Error("Ping over the secure NDP failed: ", err)
	}
}
