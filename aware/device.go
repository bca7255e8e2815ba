// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package aware wraps the Wi-Fi Aware snippet RPC surface with synchronous
// helpers: each helper issues one or more remote calls and blocks until the
// expected callback event arrives or a timeout elapses. All protocol logic
// (cluster formation, discovery, data-path negotiation) runs on the device;
// these helpers only sequence it and inspect outcomes.
package aware

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/adb"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// Device is one Android device participating in Aware tests.
type Device struct {
	ADB     *adb.Device
	Snippet *mobly.SnippetClient
	Log     *logrus.Entry
}

// SetUp prepares a device for Aware testing: Wi-Fi on, snippet launched,
// runtime permissions granted, and Aware available. A device failing any step
// is unusable for the whole suite.
func SetUp(ctx context.Context, d *adb.Device, snippetPkg string) (*Device, error) {
	if snippetPkg == "" {
		snippetPkg = SnippetPackage
	}
	if sdk, err := d.SDKVersion(ctx); err != nil {
		return nil, err
	} else if sdk < MinSDKVersion {
		return nil, errors.Errorf("%s: SDK %d has no Wi-Fi Aware API, need %d+", d.Serial, sdk, MinSDKVersion)
	}
	if err := d.EnableVerboseLoggingForTag(ctx, "WifiAware"); err != nil {
		d.Log().Warnf("Failed to enable verbose WifiAware logging: %v", err)
	}
	if err := SetWifiEnabled(ctx, d, true); err != nil {
		return nil, err
	}
	sn, err := mobly.NewSnippetClient(ctx, d, snippetPkg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start the Wi-Fi Aware snippet")
	}
	for _, p := range RuntimePermissions {
		if err := d.GrantPermission(ctx, snippetPkg, p); err != nil {
			sn.Cleanup(ctx)
			return nil, err
		}
	}
	ad := &Device{ADB: d, Snippet: sn, Log: d.Log()}
	avail, err := ad.IsAvailable(ctx)
	if err != nil {
		sn.Cleanup(ctx)
		return nil, err
	}
	if !avail {
		sn.Cleanup(ctx)
		return nil, errors.Errorf("%s: Wi-Fi Aware is not available", d.Serial)
	}
	return ad, nil
}

// TearDown releases the snippet and its forwarded port.
func (d *Device) TearDown(ctx context.Context) {
	d.Snippet.Cleanup(ctx)
}

// SetWifiEnabled toggles Wi-Fi through svc.
func SetWifiEnabled(ctx context.Context, d *adb.Device, enable bool) error {
	op := "disable"
	if enable {
		op = "enable"
	}
	if err := d.ShellCommand(ctx, "svc", "wifi", op).Run(); err != nil {
		return errors.Wrapf(err, "failed to %s wifi", op)
	}
	return nil
}

// IsAvailable reports whether Wi-Fi Aware is currently usable.
func (d *Device) IsAvailable(ctx context.Context) (bool, error) {
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "wifiAwareIsAvailable")
	if err != nil {
		return false, err
	}
	var avail bool
	if err := res.Unmarshal(&avail); err != nil {
		return false, err
	}
	return avail, nil
}

// MonitorStateChange starts listening for Aware availability broadcasts and
// returns the handler to wait on.
func (d *Device) MonitorStateChange(ctx context.Context) (*mobly.CallbackHandler, error) {
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "wifiAwareMonitorStateChange")
	if err != nil {
		return nil, err
	}
	return res.EventHandler(d.Snippet)
}

// StopMonitoringStateChange stops the availability broadcast listener.
func (d *Device) StopMonitoringStateChange(ctx context.Context) error {
	_, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "wifiAwareMonitorStopStateChange")
	return err
}

// WaitForAvailable blocks until Aware reports available, going through the
// broadcast monitor when the immediate check says unavailable.
func (d *Device) WaitForAvailable(ctx context.Context) error {
	avail, err := d.IsAvailable(ctx)
	if err != nil {
		return err
	}
	if avail {
		return nil
	}
	d.Log.Info("Aware not available, waiting for availability broadcast")
	h, err := d.MonitorStateChange(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.StopMonitoringStateChange(ctx); err != nil {
			d.Log.Warnf("Failed to stop the availability monitor: %v", err)
		}
	}()
	if _, err := h.WaitAndGet(ctx, EventAwareAvailable, CallbackTimeout); err != nil {
		return errors.Wrap(err, "Wi-Fi Aware did not become available")
	}
	return nil
}

// CloseAllSessions drops every Aware session the snippet holds on the device.
func (d *Device) CloseAllSessions(ctx context.Context) error {
	_, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "wifiAwareCloseAllWifiAwareSession")
	return errors.Wrap(err, "failed to close Aware sessions")
}

// Characteristics returns the device's Aware characteristics (max service
// name length, supported cipher suites, etc.) as reported by the framework.
func (d *Device) Characteristics(ctx context.Context) (map[string]interface{}, error) {
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "wifiAwareGetCharacteristics")
	if err != nil {
		return nil, err
	}
	var c map[string]interface{}
	if err := res.Unmarshal(&c); err != nil {
		return nil, err
	}
	return c, nil
}
