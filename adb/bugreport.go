// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package adb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// BugReport captures a bug report from the device into outDir and returns the
// report path. Capture can take minutes; callers budget for it in their
// post-failure timeout.
func (d *Device) BugReport(ctx context.Context, outDir string) (string, error) {
	name := fmt.Sprintf("bugreport_%s_%s.zip", d.Serial, time.Now().Format("20060102_150405"))
	path := filepath.Join(outDir, name)
	d.Log().Info("Taking bug report")
	if out, err := d.Command(ctx, "bugreport", path).CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "bugreport capture failed: %s", out)
	}
	return path, nil
}
