// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package direct registers the Wi-Fi Direct test cases: p2p service
// discovery and group-owner negotiation between two physical Android
// devices.
package direct

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/adb"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/direct"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/testbed"
)

func init() {
	harness.AddFixture(&harness.Fixture{
		Name:            "directDevices",
		Desc:            "Two or more Android devices with the Wi-Fi Direct snippet installed",
		Contacts:        []string{"wifi-testing@android.com"},
		Impl:            &deviceFixture{},
		SetUpTimeout:    5 * time.Minute,
		TearDownTimeout: 2 * time.Minute,
		PreTestTimeout:  time.Minute,
		PostTestTimeout: 5 * time.Minute,
	})
}

// maxParallelSetup bounds concurrent device preparation; adb gets flaky when
// too many snippet launches run at once.
const maxParallelSetup = 4

// TestDevices is the fixture value handed to every Wi-Fi Direct test.
type TestDevices struct {
	// Devices are the prepared handles, in testbed registration order. Tests
	// conventionally use Devices[0] as requester and Devices[1] as responder.
	Devices []*direct.Device
}

// Requester returns the conventional service-requester device.
func (t *TestDevices) Requester() *direct.Device { return t.Devices[0] }

// Responder returns the conventional service-responder device.
func (t *TestDevices) Responder() *direct.Device { return t.Devices[1] }

type deviceFixture struct {
	devices []*direct.Device
	// logcatMarks are per-device logcat positions taken in PreTest, so
	// PostTest can save just the current case's excerpt.
	logcatMarks []adb.LogcatTimestamp
}

// checkAttached fails the fixture when a configured serial is not visible to
// the local adb server.
func checkAttached(ctx context.Context, s *harness.FixtState, cfg *testbed.Config) {
	attached, err := adb.Devices(ctx)
	if err != nil {
		s.Fatal("Failed to enumerate attached devices: ", err)
	}
	present := make(map[string]struct{}, len(attached))
	for _, serial := range attached {
		present[serial] = struct{}{}
	}
	for _, dc := range cfg.Devices {
		if _, ok := present[dc.Serial]; !ok {
			s.Fatalf("Device %s from the testbed config is not attached", dc.Serial)
		}
	}
}

func (f *deviceFixture) SetUp(ctx context.Context, s *harness.FixtState) interface{} {
	path, ok := s.Var("testbed")
	if !ok {
		s.Fatal("No testbed var; pass -testbed to the runner")
	}
	cfg, err := testbed.Load(path)
	if err != nil {
		s.Fatal("Failed to load the testbed config: ", err)
	}

	checkAttached(ctx, s, cfg)

	devices := make([]*direct.Device, len(cfg.Devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSetup)
	for i, dc := range cfg.Devices {
		i, dc := i, dc
		g.Go(func() error {
			d, err := adb.NewDevice(gctx, dc.Serial)
			if err != nil {
				return err
			}
			if err := d.WaitForBootComplete(gctx); err != nil {
				return err
			}
			if dc.SnippetApk != "" {
				pkg := dc.SnippetPackage
				if pkg == "" {
					pkg = direct.SnippetPackage
				}
				if err := d.EnsureInstalled(gctx, pkg, dc.SnippetApk); err != nil {
					return err
				}
			}
			if err := d.ClearLogcat(gctx); err != nil {
				return err
			}
			pd, err := direct.SetUp(gctx, d, dc.SnippetPackage)
			if err != nil {
				return err
			}
			devices[i] = pd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, d := range devices {
			if d != nil {
				d.TearDown(ctx)
			}
		}
		s.Fatal("Failed to prepare the testbed devices: ", err)
	}
	f.devices = devices
	s.Logf("Prepared %d Wi-Fi Direct devices", len(devices))
	return &TestDevices{Devices: devices}
}

func (f *deviceFixture) TearDown(ctx context.Context, s *harness.FixtState) {
	var g errgroup.Group
	for _, d := range f.devices {
		d := d
		g.Go(func() error {
			d.TearDown(ctx)
			return nil
		})
	}
	g.Wait()
	f.devices = nil
}

// PreTest (re)initializes the p2p channel on every device so each case sees
// a fresh framework state and current device addresses.
func (f *deviceFixture) PreTest(ctx context.Context, s *harness.State) {
	f.logcatMarks = make([]adb.LogcatTimestamp, len(f.devices))
	for i, d := range f.devices {
		ts, err := d.ADB.LatestLogcatTimestamp(ctx)
		if err != nil {
			s.Logf("Failed to read the logcat position on %s: %v", d.ADB.Serial, err)
		}
		f.logcatMarks[i] = ts
	}
	for _, d := range f.devices {
		if err := d.Initialize(ctx); err != nil {
			s.Fatalf("%s: p2p initialization failed: %v", d.ADB.Serial, err)
		}
	}
}

func (f *deviceFixture) PostTest(ctx context.Context, s *harness.State) {
	for i, d := range f.devices {
		if i >= len(f.logcatMarks) || f.logcatMarks[i] == "" {
			continue
		}
		path := filepath.Join(s.OutDir(), fmt.Sprintf("logcat_%s.txt", d.ADB.Serial))
		if err := d.ADB.DumpLogcatFromTimestamp(ctx, path, f.logcatMarks[i]); err != nil {
			s.Logf("Failed to save the logcat excerpt for %s: %v", d.ADB.Serial, err)
		}
	}
	if s.HasError() {
		for _, d := range f.devices {
			if path, err := d.ADB.BugReport(ctx, s.OutDir()); err != nil {
				s.Logf("Failed to take a bug report on %s: %v", d.ADB.Serial, err)
			} else {
				s.Logf("Saved bug report %s", path)
			}
		}
	}
	for _, d := range f.devices {
		d.ResetServiceState(ctx)
		d.Close(ctx)
	}
}
