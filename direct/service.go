// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direct

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// AddBonjourLocalService registers a DNS-SD service on the device.
func (d *Device) AddBonjourLocalService(ctx context.Context, cfg BonjourServiceConfig) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pAddBonjourLocalService", cfg); err != nil {
		return errors.Wrapf(err, "failed to add Bonjour service %s", cfg.InstanceName)
	}
	return nil
}

// AddUpnpLocalService registers a UPnP service on the device.
func (d *Device) AddUpnpLocalService(ctx context.Context, cfg UpnpServiceConfig) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pAddUpnpLocalService", cfg); err != nil {
		return errors.Wrapf(err, "failed to add UPnP service %s", cfg.UUID)
	}
	return nil
}

// RegisterDefaultServices registers the suite's standard UPnP and Bonjour
// services on the responder side.
func (d *Device) RegisterDefaultServices(ctx context.Context) error {
	if err := d.AddUpnpLocalService(ctx, DefaultUpnpService); err != nil {
		return err
	}
	if err := d.AddBonjourLocalService(ctx, DefaultIppService); err != nil {
		return err
	}
	return d.AddBonjourLocalService(ctx, DefaultAfpService)
}

// AddServiceRequest queues a service discovery request of the given type.
func (d *Device) AddServiceRequest(ctx context.Context, t ServiceType) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pAddServiceRequest", int(t)); err != nil {
		return errors.Wrapf(err, "failed to add service request of type %d", t)
	}
	return nil
}

// AddBonjourServiceRequest queues a Bonjour-specific service discovery
// request. Empty instanceName and serviceType request all DNS-SD services.
func (d *Device) AddBonjourServiceRequest(ctx context.Context, instanceName, serviceType string) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pAddBonjourServiceRequest", instanceName, serviceType); err != nil {
		return errors.Wrap(err, "failed to add a Bonjour service request")
	}
	return nil
}

// AddUpnpServiceRequest queues a UPnP-specific service discovery request.
// An empty search target requests all UPnP services.
func (d *Device) AddUpnpServiceRequest(ctx context.Context, searchTarget string) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pAddUpnpServiceRequest", searchTarget); err != nil {
		return errors.Wrap(err, "failed to add a UPnP service request")
	}
	return nil
}

// SetDnsSdResponseListeners installs DNS-SD response listeners and returns
// the handler delivering onDnsSdServiceAvailable and
// onDnsSdTxtRecordAvailable events.
func (d *Device) SetDnsSdResponseListeners(ctx context.Context) (*mobly.CallbackHandler, error) {
	res, err := d.Snippet.RPC(ctx, 0, "wifiP2pSetDnsSdResponseListeners")
	if err != nil {
		return nil, errors.Wrap(err, "failed to set DNS-SD response listeners")
	}
	return res.EventHandler(d.Snippet)
}

// SetUpnpResponseListener installs a UPnP response listener and returns the
// handler delivering onUpnpServiceAvailable events.
func (d *Device) SetUpnpResponseListener(ctx context.Context) (*mobly.CallbackHandler, error) {
	res, err := d.Snippet.RPC(ctx, 0, "wifiP2pSetUpnpResponseListener")
	if err != nil {
		return nil, errors.Wrap(err, "failed to set UPnP response listener")
	}
	return res.EventHandler(d.Snippet)
}

// DiscoverServices starts p2p service discovery.
func (d *Device) DiscoverServices(ctx context.Context) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pDiscoverServices"); err != nil {
		return errors.Wrap(err, "failed to start service discovery")
	}
	return nil
}

// DiscoverPeers starts p2p peer discovery. Responders run this so they stay
// visible to the requester's probes.
func (d *Device) DiscoverPeers(ctx context.Context) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pDiscoverPeers"); err != nil {
		return errors.Wrap(err, "failed to start peer discovery")
	}
	return nil
}

// matchDnsSdResponse returns the index of the expected response matched by
// the event payload, or -1.
func matchDnsSdResponse(expected []DnsSdResponse, instance, regType string) int {
	for i, want := range expected {
		if want.InstanceName == instance && want.RegistrationType == regType {
			return i
		}
	}
	return -1
}

// matchTxtRecord returns the index of the expected TXT record matched by the
// event payload, or -1. Domain comparison is case-insensitive since mDNS
// names are.
func matchTxtRecord(expected []DnsSdTxtRecord, domain string, record map[string]string) int {
	for i, want := range expected {
		if !strings.EqualFold(want.FullDomainName, domain) {
			continue
		}
		if len(want.Record) != len(record) {
			continue
		}
		ok := true
		for k, v := range want.Record {
			if record[k] != v {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

// removeIndex drops element i preserving order.
func removeIndex[T any](s []T, i int) []T {
	return append(s[:i:i], s[i+1:]...)
}

// CheckDnsSdResponses waits until every expected DNS-SD response has arrived
// from the given source device address.
func CheckDnsSdResponses(ctx context.Context, h *mobly.CallbackHandler, expected []DnsSdResponse, srcAddr string) error {
	remaining := append([]DnsSdResponse(nil), expected...)
	deadline := time.Now().Add(CallbackTimeout)
	for len(remaining) > 0 {
		left := time.Until(deadline)
		if left <= 0 {
			return errors.Errorf("timed out with %d DNS-SD responses outstanding, first missing %+v", len(remaining), remaining[0])
		}
		ev, err := h.WaitAndGet(ctx, EventDnsSdServiceAvailable, left)
		if err != nil {
			return errors.Wrapf(err, "missing %d DNS-SD responses, first missing %+v", len(remaining), remaining[0])
		}
		if !strings.EqualFold(ev.String(KeySourceDeviceAddress), srcAddr) {
			continue
		}
		if i := matchDnsSdResponse(remaining, ev.String(KeyInstanceName), ev.String(KeyRegistrationType)); i >= 0 {
			remaining = removeIndex(remaining, i)
		}
	}
	return nil
}

// CheckDnsSdTxtRecords waits until every expected TXT record has arrived
// from the given source device address.
func CheckDnsSdTxtRecords(ctx context.Context, h *mobly.CallbackHandler, expected []DnsSdTxtRecord, srcAddr string) error {
	remaining := append([]DnsSdTxtRecord(nil), expected...)
	deadline := time.Now().Add(CallbackTimeout)
	for len(remaining) > 0 {
		left := time.Until(deadline)
		if left <= 0 {
			return errors.Errorf("timed out with %d TXT records outstanding, first missing %q", len(remaining), remaining[0].FullDomainName)
		}
		ev, err := h.WaitAndGet(ctx, EventDnsSdTxtRecordAvailable, left)
		if err != nil {
			return errors.Wrapf(err, "missing %d TXT records, first missing %q", len(remaining), remaining[0].FullDomainName)
		}
		if !strings.EqualFold(ev.String(KeySourceDeviceAddress), srcAddr) {
			continue
		}
		if i := matchTxtRecord(remaining, ev.String(KeyFullDomainName), ev.StringMap(KeyTxtRecordMap)); i >= 0 {
			remaining = removeIndex(remaining, i)
		}
	}
	return nil
}

// CheckUpnpResponses waits until every expected UPnP unique service name has
// arrived from the given source device address.
func CheckUpnpResponses(ctx context.Context, h *mobly.CallbackHandler, expected []string, srcAddr string) error {
	remaining := make(map[string]struct{}, len(expected))
	for _, usn := range expected {
		remaining[strings.ToLower(usn)] = struct{}{}
	}
	deadline := time.Now().Add(CallbackTimeout)
	for len(remaining) > 0 {
		left := time.Until(deadline)
		if left <= 0 {
			return errors.Errorf("timed out with %d UPnP service names outstanding", len(remaining))
		}
		ev, err := h.WaitAndGet(ctx, EventUpnpServiceAvailable, left)
		if err != nil {
			return errors.Wrapf(err, "missing %d UPnP service names", len(remaining))
		}
		if !strings.EqualFold(ev.String(KeySourceDeviceAddress), srcAddr) {
			continue
		}
		for _, usn := range ev.StringSlice(KeyUniqueServiceNames) {
			delete(remaining, strings.ToLower(usn))
		}
	}
	return nil
}
