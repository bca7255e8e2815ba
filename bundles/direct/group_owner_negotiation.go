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
		Func:     GroupOwnerNegotiation,
		Name:     "direct.GroupOwnerNegotiation",
		Desc:     "GO negotiation forms a group with exactly one group owner and honors a maximal intent",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "directDevices",
		Timeout:  10 * time.Minute,
	})
}

func GroupOwnerNegotiation(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	req := td.Requester()
	resp := td.Responder()

	// Intent 15 demands the GO role; the responder's default intent loses.
	reqInfo, respInfo, err := direct.FormGroup(ctx, req, resp, 15)
	if err != nil {
		s.Fatal("Group formation failed: ", err)
	}
	defer func() {
		if err := req.RemoveGroup(ctx); err != nil {
			s.Log("Failed to remove the group on the requester: ", err)
		}
		if err := resp.RemoveGroup(ctx); err != nil {
			s.Log("Failed to remove the group on the responder: ", err)
		}
	}()

	if err := direct.ValidateGroupRoles(reqInfo, respInfo); err != nil {
		s.Error("Bad group roles: ", err)
	}
	if !reqInfo.IsGroupOwner {
		s.Errorf("Requester demanded GO with intent 15 but %s became owner", respInfo.GroupOwnerAddress)
	}
	s.Logf("Group formed, owner at %s", reqInfo.GroupOwnerAddress)

	// The client side must reach the GO over the group link.
	client := req
	if reqInfo.IsGroupOwner {
		client = resp
	}
	if err := client.Ping(ctx, reqInfo.GroupOwnerAddress); err != nil {
		s.Error("Ping across the group failed: ", err)
	}
}
