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
		Func:     Capabilities,
		Name:     "aware.Capabilities",
		Desc:     "Each device reports sane Aware characteristics",
		Contacts: []string{"wifi-testing@android.com"},
		Attr:     []string{"smoke"},
		Fixture:  "awareDevices",
	})
}

// NAN spec minimum for the service name length.
const minServiceNameLength = 255

func Capabilities(ctx context.Context, s *harness.State) {
	td := s.FixtValue().(*TestDevices)
	for _, d := range td.Devices {
		c, err := d.Characteristics(ctx)
		if err != nil {
			s.Fatalf("%s: failed to read characteristics: %v", d.ADB.Serial, err)
		}
		s.Logf("%s characteristics: %v", d.ADB.Serial, c)

		maxLen, ok := c["maxServiceNameLength"].(float64)
		if !ok {
			s.Errorf("%s: characteristics carry no maxServiceNameLength", d.ADB.Serial)
		} else if int(maxLen) < minServiceNameLength {
			s.Errorf("%s: maxServiceNameLength = %d, want >= %d", d.ADB.Serial, int(maxLen), minServiceNameLength)
		}
		if maxSsi, ok := c["maxServiceSpecificInfoLength"].(float64); !ok {
			s.Errorf("%s: characteristics carry no maxServiceSpecificInfoLength", d.ADB.Serial)
		} else if maxSsi <= 0 {
			s.Errorf("%s: maxServiceSpecificInfoLength = %v, want > 0", d.ADB.Serial, maxSsi)
		}
	}
}
