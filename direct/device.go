// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package direct drives Wi-Fi Direct (p2p) operations on Android devices
// through the Mobly snippet RPC service.
package direct

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/adb"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// RuntimePermissions are granted to the snippet before p2p operations.
var RuntimePermissions = []string{
	"android.permission.ACCESS_FINE_LOCATION",
	"android.permission.ACCESS_COARSE_LOCATION",
	"android.permission.NEARBY_WIFI_DEVICES",
}

// Device is one Android device participating in Wi-Fi Direct tests.
type Device struct {
	ADB     *adb.Device
	Snippet *mobly.SnippetClient
	Log     *logrus.Entry

	// Address is the device's own p2p MAC address, populated by Initialize.
	Address string

	p2pHandler *mobly.CallbackHandler
}

// SetUp prepares the device for Wi-Fi Direct testing. It launches the
// snippet, grants location permissions and resets Wi-Fi to a clean state.
func SetUp(ctx context.Context, d *adb.Device, snippetPkg string) (*Device, error) {
	if snippetPkg == "" {
		snippetPkg = SnippetPackage
	}
	if err := d.SetScreenOnAndUnlock(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to wake device")
	}
	if err := d.EnableVerboseLoggingForTag(ctx, "WifiP2pService"); err != nil {
		d.Log().Warnf("Failed to enable verbose WifiP2pService logging: %v", err)
	}
	sc, err := mobly.NewSnippetClient(ctx, d, snippetPkg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start the p2p snippet")
	}
	dev := &Device{ADB: d, Snippet: sc, Log: d.Log()}
	for _, p := range RuntimePermissions {
		if err := d.GrantPermission(ctx, snippetPkg, p); err != nil {
			dev.close(ctx)
			return nil, errors.Wrapf(err, "failed to grant %s", p)
		}
	}
	if err := dev.resetWifi(ctx); err != nil {
		dev.close(ctx)
		return nil, err
	}
	return dev, nil
}

// resetWifi clears configured networks and cycles Wi-Fi so p2p starts from a
// known state.
func (d *Device) resetWifi(ctx context.Context) error {
	if _, err := d.Snippet.RPC(ctx, 0, "wifiDisable"); err != nil {
		return errors.Wrap(err, "failed to disable wifi")
	}
	if _, err := d.Snippet.RPC(ctx, 0, "wifiClearConfiguredNetworks"); err != nil {
		return errors.Wrap(err, "failed to clear configured networks")
	}
	if _, err := d.Snippet.RPC(ctx, 0, "wifiEnable"); err != nil {
		return errors.Wrap(err, "failed to enable wifi")
	}
	return nil
}

// Initialize registers a p2p channel on the device and waits until the
// framework reports this device's p2p identity.
func (d *Device) Initialize(ctx context.Context) error {
	res, err := d.Snippet.RPC(ctx, 0, "wifiP2pInitialize")
	if err != nil {
		return errors.Wrap(err, "wifiP2pInitialize RPC failed")
	}
	h, err := res.EventHandler(d.Snippet)
	if err != nil {
		return err
	}
	d.p2pHandler = h
	ev, err := h.WaitAndGet(ctx, EventThisDeviceChanged, CallbackTimeout)
	if err != nil {
		return errors.Wrap(err, "p2p device identity was not reported")
	}
	addr := ev.String(KeyDeviceAddress)
	if addr == "" {
		return errors.Errorf("%s event carried no device address", EventThisDeviceChanged)
	}
	d.Address = addr
	d.Log.Infof("P2p initialized, device address %s", addr)
	return nil
}

// ResetServiceState removes service requests, local services and any ongoing
// discovery or group so the next test starts clean. Failures are logged, not
// returned, since teardown must keep going.
func (d *Device) ResetServiceState(ctx context.Context) {
	for _, method := range []string{
		"wifiP2pClearServiceRequests",
		"wifiP2pClearLocalServices",
		"wifiP2pStopPeerDiscovery",
		"wifiP2pCancelConnect",
		"wifiP2pRemoveGroup",
	} {
		if _, err := d.Snippet.RPC(ctx, 0, method); err != nil {
			d.Log.Debugf("%s during reset: %v", method, err)
		}
	}
}

// Close releases the p2p channel registered by Initialize. The snippet stays
// up, so Initialize can be called again.
func (d *Device) Close(ctx context.Context) {
	if d.p2pHandler == nil {
		return
	}
	if _, err := d.Snippet.RPC(ctx, 0, "wifiP2pClose"); err != nil {
		d.Log.Warnf("Failed to close the p2p channel: %v", err)
	}
	d.p2pHandler = nil
	d.Address = ""
}

// TearDown releases the p2p channel and stops the snippet.
func (d *Device) TearDown(ctx context.Context) {
	d.ResetServiceState(ctx)
	d.Close(ctx)
	d.close(ctx)
}

func (d *Device) close(ctx context.Context) {
	if err := d.Snippet.Stop(ctx); err != nil {
		d.Log.Warnf("Failed to stop the p2p snippet: %v", err)
	}
	d.Snippet.Cleanup(ctx)
}

// WaitForP2pEvent waits on the channel-level callback registered by
// Initialize.
func (d *Device) WaitForP2pEvent(ctx context.Context, name string, timeout time.Duration) (*mobly.Event, error) {
	if d.p2pHandler == nil {
		return nil, errors.New("p2p channel is not initialized")
	}
	return d.p2pHandler.WaitAndGet(ctx, name, timeout)
}
