// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package adb

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/pkg/errors"
)

// ClearLogcat clears all logcat buffers.
func (d *Device) ClearLogcat(ctx context.Context) error {
	if err := d.ShellCommand(ctx, "logcat", "-b", "all", "-c").Run(); err != nil {
		return errors.Wrap(err, "failed to clear logcat logs")
	}
	return nil
}

// EnableVerboseLoggingForTag enables verbose logging for the specified tag.
func (d *Device) EnableVerboseLoggingForTag(ctx context.Context, tag string) error {
	if err := d.ShellCommand(ctx, "setprop", fmt.Sprintf("log.tag.%v", tag), "VERBOSE").Run(); err != nil {
		return errors.Wrapf(err, "failed to enable verbose logging for tag %v", tag)
	}
	return nil
}

// DumpLogcat dumps logcat's current contents to the specified file.
func (d *Device) DumpLogcat(ctx context.Context, filePath string, opts ...string) error {
	out, err := os.Create(filePath)
	if err != nil {
		return errors.Wrap(err, "failed to create logcat output file")
	}
	defer out.Close()

	params := append([]string{"logcat", "-d"}, opts...)
	cmd := d.Command(ctx, params...)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "failed to dump logcat")
	}
	return nil
}

// LogcatTimestamp is a logcat-formatted timestamp string:
// MM-DD hh:mm:ss.xxx ex: 06-15 17:03:00.887
type LogcatTimestamp string

// LogcatTimestampPattern is the regexp for matching a logcat timestamp string.
var LogcatTimestampPattern = regexp.MustCompile(`\d{1,2}-\d{1,2} \d{1,2}:\d{1,2}:\d{1,2}.\d{1,3}`)

// LatestLogcatTimestamp gets the timestamp of the latest logcat entry. It
// serves as a marker for per-test logcat excerpts without clearing buffers.
func (d *Device) LatestLogcatTimestamp(ctx context.Context) (LogcatTimestamp, error) {
	out, err := d.Output(ctx, "logcat", "-t", "1")
	if err != nil {
		return "", errors.Wrap(err, "failed to get latest logcat entry")
	}
	ts := LogcatTimestampPattern.FindString(out)
	return LogcatTimestamp(ts), nil
}

// DumpLogcatFromTimestamp dumps logcat entries after timestamp to filePath.
func (d *Device) DumpLogcatFromTimestamp(ctx context.Context, filePath string, timestamp LogcatTimestamp) error {
	return d.DumpLogcat(ctx, filePath, "-T", string(timestamp))
}
