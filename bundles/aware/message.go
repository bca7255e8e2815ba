// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/aware"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
)

func init() {
	harness.AddTest(&harness.Test{
		Func:     Message,
		Name:     "aware.Message",
		Desc:     "Layer-2 messages flow in both directions over an established discovery pair",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "awareDevices",
	})
}

func Message(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)

	const serviceName = "GoogleTestServiceM"
	pair, err := aware.CreateDiscoveryPair(ctx, td.Publisher(), td.Subscriber(),
		aware.DefaultPublishConfig(serviceName, aware.PublishTypeUnsolicited),
		aware.DefaultSubscribeConfig(serviceName, aware.SubscribeTypePassive),
		aware.DeviceStartupOffset)
	if err != nil {
		s.Fatal("Failed to establish discovery: ", err)
	}

	// Publisher to subscriber. The setup round trip already covered the other
	// direction once; still verify both explicitly with known payloads.
	const pubMsg = "message from publisher"
	if err := pair.PubSession.SendMessage(ctx, pair.PeerIDOnPub, aware.NextMessageID(), pubMsg); err != nil {
		s.Fatal("Publisher failed to send: ", err)
	}
	if _, got, err := pair.SubSession.WaitForMessage(ctx, aware.CallbackTimeout); err != nil {
		s.Fatal("Subscriber received nothing: ", err)
	} else if got != pubMsg {
		s.Errorf("Subscriber received %q, want %q", got, pubMsg)
	}

	const subMsg = "message from subscriber"
	if err := pair.SubSession.SendMessage(ctx, pair.PeerIDOnSub, aware.NextMessageID(), subMsg); err != nil {
		s.Fatal("Subscriber failed to send: ", err)
	}
	if _, got, err := pair.PubSession.WaitForMessage(ctx, aware.CallbackTimeout); err != nil {
		s.Fatal("Publisher received nothing: ", err)
	} else if got != subMsg {
		s.Errorf("Publisher received %q, want %q", got, subMsg)
	}
}
