// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package adb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdb puts a stub adb on PATH that answers the subcommands the tests
// exercise and records every invocation to a log file.
func fakeAdb(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	logFile := filepath.Join(dir, "calls.log")
	script := `#!/bin/sh
echo "$@" >> "` + logFile + `"
case "$*" in
  *"pm list packages"*)
    echo "package:com.android.settings"
    echo "package:com.google.snippet.wifi.aware"
    ;;
  *"logcat -t 1"*)
    echo "--------- beginning of main"
    echo "06-15 17:03:00.887  1925  1925 I wpa_supplicant: p2p-device-found"
    ;;
  devices)
    echo "List of devices attached"
    printf '19281FDF3000W3\tdevice\n'
    printf '29061FDH200ML7\toffline\n'
    ;;
esac
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adb"), []byte(script), 0755))
	t.Setenv("PATH", dir)
	return logFile
}

func adbCalls(t *testing.T, logFile string) string {
	t.Helper()
	b, err := os.ReadFile(logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatal(err)
	}
	return string(b)
}

func TestDevicesSkipsOfflineDevices(t *testing.T) {
	fakeAdb(t)
	serials, err := Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"19281FDF3000W3"}, serials)
}

func TestInstalledPackages(t *testing.T) {
	fakeAdb(t)
	d := &Device{Serial: "ABC123"}
	pkgs, err := d.InstalledPackages(context.Background())
	require.NoError(t, err)
	assert.Contains(t, pkgs, "com.google.snippet.wifi.aware")
	assert.NotContains(t, pkgs, "com.google.snippet.wifi.direct")
}

func TestEnsureInstalledSkipsPresentPackage(t *testing.T) {
	logFile := fakeAdb(t)
	d := &Device{Serial: "ABC123"}
	err := d.EnsureInstalled(context.Background(), "com.google.snippet.wifi.aware", "/tmp/snippet.apk")
	require.NoError(t, err)
	assert.NotContains(t, adbCalls(t, logFile), "install")
}

func TestEnsureInstalledInstallsMissingPackage(t *testing.T) {
	logFile := fakeAdb(t)
	d := &Device{Serial: "ABC123"}
	err := d.EnsureInstalled(context.Background(), "com.google.snippet.wifi.direct", "/tmp/snippet.apk")
	require.NoError(t, err)
	assert.Contains(t, adbCalls(t, logFile), "install -r -g /tmp/snippet.apk")
}

func TestLatestLogcatTimestamp(t *testing.T) {
	fakeAdb(t)
	d := &Device{Serial: "ABC123"}
	ts, err := d.LatestLogcatTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LogcatTimestamp("06-15 17:03:00.887"), ts)
}

func TestLogcatTimestampPattern(t *testing.T) {
	line := "06-15 17:03:00.887  1925  1925 I wpa_supplicant: p2p-device-found"
	assert.Equal(t, "06-15 17:03:00.887", LogcatTimestampPattern.FindString(line))
	assert.Equal(t, "", LogcatTimestampPattern.FindString("no timestamp here"))
}

func TestCommandArgs(t *testing.T) {
	d := &Device{Serial: "ABC123"}
	cmd := d.ShellCommand(context.Background(), "pm", "grant", "com.google.snippet.wifi", "android.permission.ACCESS_FINE_LOCATION")
	assert.Equal(t, []string{
		"adb", "-s", "ABC123", "shell", "pm", "grant",
		"com.google.snippet.wifi", "android.permission.ACCESS_FINE_LOCATION",
	}, cmd.Args)
}
