// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direct

import (
	"context"
	"time"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/direct"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
)

func init() {
	harness.AddTest(&harness.Test{
		Func:     GroupJoin,
		Name:     "direct.GroupJoin",
		Desc:     "A client joins an autonomous group and reaches the group owner over the p2p link",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "directDevices",
		Timeout:  10 * time.Minute,
	})
}

func GroupJoin(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	owner := td.Responder()
	client := td.Requester()

	ownerInfo, clientInfo, err := direct.CreateAndJoinGroup(ctx, owner, client)
	if err != nil {
		s.Fatal("Group join failed: ", err)
	}
	defer func() {
		if err := client.RemoveGroup(ctx); err != nil {
			s.Log("Failed to remove the group on the client: ", err)
		}
		if err := owner.RemoveGroup(ctx); err != nil {
			s.Log("Failed to remove the group on the owner: ", err)
		}
	}()

	if !ownerInfo.IsGroupOwner {
		s.Fatal("Group creator did not become group owner")
	}
	if clientInfo.IsGroupOwner {
		s.Fatal("Joining client became group owner")
	}
	s.Logf("Autonomous group up, owner at %s", clientInfo.GroupOwnerAddress)

	if err := client.Ping(ctx, clientInfo.GroupOwnerAddress); err != nil {
		s.Error("Ping to the group owner failed: ", err)
	}
}
