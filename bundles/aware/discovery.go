// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/aware"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
)

type discoveryParam struct {
	publishType   aware.PublishType
	subscribeType aware.SubscribeType
	// matchFilter, when set, is applied on both sides; discovery must still
	// succeed since the filters are identical.
	matchFilter []string
}

func init() {
	harness.AddTest(&harness.Test{
		Func:     Discovery,
		Name:     "aware.Discovery",
		Desc:     "A subscriber discovers a published service and the discovery event carries the publisher's service info",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "awareDevices",
		Params: []harness.Param{
			{
				Name: "unsolicited_passive",
				Val:  discoveryParam{publishType: aware.PublishTypeUnsolicited, subscribeType: aware.SubscribeTypePassive},
			},
			{
				Name: "solicited_active",
				Val:  discoveryParam{publishType: aware.PublishTypeSolicited, subscribeType: aware.SubscribeTypeActive},
			},
			{
				Name: "unsolicited_passive_match_filter",
				Val: discoveryParam{
					publishType:   aware.PublishTypeUnsolicited,
					subscribeType: aware.SubscribeTypePassive,
					matchFilter:   []string{"bytes 1 and 2", "bytes 3 and 4"},
				},
			},
		},
	})
}

func Discovery(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	p := s.Param().(discoveryParam)

	const serviceName = "GoogleTestServiceX"
	pCfg := aware.DefaultPublishConfig(serviceName, p.publishType)
	sCfg := aware.DefaultSubscribeConfig(serviceName, p.subscribeType)
	pCfg.MatchFilter = p.matchFilter
	sCfg.MatchFilter = p.matchFilter

	pub := td.Publisher()
	sub := td.Subscriber()

	pAttach, err := pub.Attach(ctx)
	if err != nil {
		s.Fatal("Publisher attach failed: ", err)
	}
	if _, err := pAttach.Publish(ctx, pCfg); err != nil {
		s.Fatal("Publish failed: ", err)
	}
	sAttach, err := sub.Attach(ctx)
	if err != nil {
		s.Fatal("Subscriber attach failed: ", err)
	}
	sSess, err := sAttach.Subscribe(ctx, sCfg)
	if err != nil {
		s.Fatal("Subscribe failed: ", err)
	}

	peerID, ev, err := sSess.WaitForDiscovery(ctx)
	if err != nil {
		s.Fatal("Service was not discovered: ", err)
	}
	s.Logf("Discovered %s, peer id %d", serviceName, peerID)

	if ssi := ev.String(aware.KeyServiceSpecificInfo); ssi != pCfg.ServiceSpecificInfo {
		s.Errorf("Discovery carried service info %q, want %q", ssi, pCfg.ServiceSpecificInfo)
	}
}
