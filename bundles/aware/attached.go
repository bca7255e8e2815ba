// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
)

func init() {
	harness.AddTest(&harness.Test{
		Func:     Attached,
		Name:     "aware.Attached",
		Desc:     "Each device can attach to the Aware service and learn its discovery MAC",
		Contacts: []string{"wifi-testing@android.com"},
		Attr:     []string{"smoke"},
		Fixture:  "awareDevices",
	})
}

func Attached(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	for _, d := range td.Devices {
		session, err := d.Attach(ctx)
		if err != nil {
			s.Fatalf("%s: attach failed: %v", d.ADB.Serial, err)
		}
		if session.MAC == "" {
			s.Errorf("%s: attached without a discovery MAC", d.ADB.Serial)
		}
		s.Logf("%s attached with discovery MAC %s", d.ADB.Serial, session.MAC)
	}

	// A second attach on the same device must succeed as well; the framework
	// supports concurrent attach sessions.
	if _, err := td.Publisher().Attach(ctx); err != nil {
		s.Error("Repeated attach failed: ", err)
	}
}
