// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package aware registers the Wi-Fi Aware test cases: attach, capabilities,
// service discovery, messaging and data-path establishment between two
// physical Android devices.
package aware

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/adb"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/aware"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/testbed"
)

func init() {
	harness.AddFixture(&harness.Fixture{
		Name:            "awareDevices",
		Desc:            "Two or more Android devices with the Wi-Fi Aware snippet installed and Aware available",
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

// TestDevices is the fixture value handed to every Aware test.
type TestDevices struct {
	// Devices are the prepared handles, in testbed registration order. Tests
	// conventionally use Devices[0] as publisher/initiator and Devices[1] as
	// subscriber/responder.
	Devices []*aware.Device
}

// Publisher returns the conventional publisher-side device.
func (t *TestDevices) Publisher() *aware.Device { return t.Devices[0] }

// Subscriber returns the conventional subscriber-side device.
func (t *TestDevices) Subscriber() *aware.Device { return t.Devices[1] }

type deviceFixture struct {
	devices []*aware.Device
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

	devices := make([]*aware.Device, len(cfg.Devices))
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
					pkg = aware.SnippetPackage
				}
				if err := d.EnsureInstalled(gctx, pkg, dc.SnippetApk); err != nil {
					return err
				}
			}
			if err := d.ClearLogcat(gctx); err != nil {
				return err
			}
			ad, err := aware.SetUp(gctx, d, dc.SnippetPackage)
			if err != nil {
				return err
			}
			devices[i] = ad
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Release whatever came up before the failure.
		for _, d := range devices {
			if d != nil {
				d.TearDown(ctx)
			}
		}
		s.Fatal("Failed to prepare the testbed devices: ", err)
	}
	f.devices = devices
	s.Logf("Prepared %d Aware devices", len(devices))
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
		if err := d.WaitForAvailable(ctx); err != nil {
			s.Fatalf("%s: Aware did not become available: %v", d.ADB.Serial, err)
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
	// Drop per-test sessions so a leaked publish or network request cannot
	// bleed into the next case.
	for _, d := range f.devices {
		if err := d.CloseAllSessions(ctx); err != nil {
			s.Logf("Failed to close sessions on %s: %v", d.ADB.Serial, err)
		}
	}
}
