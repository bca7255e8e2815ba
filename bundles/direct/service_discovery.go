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

type serviceDiscoveryParam struct {
	requestType direct.ServiceType
	// apiSpecific requests services through the typed Bonjour/UPnP request
	// constructors instead of the generic typed request.
	apiSpecific bool
	// wantDnsSd and wantUpnp select which response families the request type
	// must surface.
	wantDnsSd bool
	wantUpnp  bool
}

func init() {
	harness.AddTest(&harness.Test{
		Func:     ServiceDiscovery,
		Name:     "direct.ServiceDiscovery",
		Desc:     "A requester discovers the UPnP and Bonjour services registered on a responder",
		Contacts: []string{"wifi-testing@android.com"},
		Fixture:  "directDevices",
		Timeout:  10 * time.Minute,
		Params: []harness.Param{
			{
				Name: "search_all",
				Val:  serviceDiscoveryParam{requestType: direct.ServiceTypeAll, wantDnsSd: true, wantUpnp: true},
			},
			{
				Name: "search_bonjour",
				Val:  serviceDiscoveryParam{requestType: direct.ServiceTypeBonjour, wantDnsSd: true},
			},
			{
				Name: "search_upnp",
				Val:  serviceDiscoveryParam{requestType: direct.ServiceTypeUpnp, wantUpnp: true},
			},
			{
				Name: "search_bonjour_api",
				Val:  serviceDiscoveryParam{requestType: direct.ServiceTypeBonjour, apiSpecific: true, wantDnsSd: true},
			},
			{
				Name: "search_upnp_api",
				Val:  serviceDiscoveryParam{requestType: direct.ServiceTypeUpnp, apiSpecific: true, wantUpnp: true},
			},
		},
	})
}

func ServiceDiscovery(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	p := s.Param().(serviceDiscoveryParam)
	req := td.Requester()
	resp := td.Responder()

	if err := resp.RegisterDefaultServices(ctx); err != nil {
		s.Fatal("Responder failed to register services: ", err)
	}
	// The responder must be in discovery so it answers service requests.
	if err := resp.DiscoverPeers(ctx); err != nil {
		s.Fatal("Responder failed to start peer discovery: ", err)
	}

	dnsSdH, err := req.SetDnsSdResponseListeners(ctx)
	if err != nil {
		s.Fatal("Failed to install DNS-SD listeners: ", err)
	}
	upnpH, err := req.SetUpnpResponseListener(ctx)
	if err != nil {
		s.Fatal("Failed to install the UPnP listener: ", err)
	}
	if p.apiSpecific {
		switch p.requestType {
		case direct.ServiceTypeBonjour:
			err = req.AddBonjourServiceRequest(ctx, "", "")
		case direct.ServiceTypeUpnp:
			err = req.AddUpnpServiceRequest(ctx, "")
		}
	} else {
		err = req.AddServiceRequest(ctx, p.requestType)
	}
	if err != nil {
		s.Fatal("Failed to add the service request: ", err)
	}
	if err := req.DiscoverServices(ctx); err != nil {
		s.Fatal("Failed to start service discovery: ", err)
	}

	if p.wantDnsSd {
		if err := direct.CheckDnsSdResponses(ctx, dnsSdH, direct.AllDnsSdResponses, resp.Address); err != nil {
			s.Error("DNS-SD responses incomplete: ", err)
		}
		if err := direct.CheckDnsSdTxtRecords(ctx, dnsSdH, direct.AllDnsSdTxtRecords, resp.Address); err != nil {
			s.Error("DNS-SD TXT records incomplete: ", err)
		}
	}
	if p.wantUpnp {
		if err := direct.CheckUpnpResponses(ctx, upnpH, direct.AllUpnpServices, resp.Address); err != nil {
			s.Error("UPnP responses incomplete: ", err)
		}
	}
}
