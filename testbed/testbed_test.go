// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package testbed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
name: aware-bench-1
output_root: /tmp/wifi-runs
devices:
  - serial: 19281FDF3000W3
    label: publisher
  - serial: 29061FDH200ML7
    label: subscriber
    snippet_package: com.google.snippet.wifi.direct
    snippet_apk: /tmp/wifi_direct_snippet.apk
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "aware-bench-1", cfg.Name)
	assert.Equal(t, "/tmp/wifi-runs", cfg.OutputRoot)
	assert.Equal(t, 2, cfg.MinDevices)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, "publisher", cfg.Devices[0].Label)
	assert.Equal(t, "com.google.snippet.wifi.direct", cfg.Devices[1].SnippetPackage)
	assert.Equal(t, "/tmp/wifi_direct_snippet.apk", cfg.Devices[1].SnippetApk)
}

func TestParseRejectsTooFewDevices(t *testing.T) {
	_, err := Parse([]byte("name: tb\ndevices:\n  - serial: only-one\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 2")
}

func TestParseRejectsDuplicateSerials(t *testing.T) {
	_, err := Parse([]byte("name: tb\ndevices:\n  - serial: x\n  - serial: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate device serial")
}

func TestSerialsEnvOverride(t *testing.T) {
	t.Setenv(deviceSerialsEnv, "AAA111, BBB222")
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, "AAA111", cfg.Devices[0].Serial)
	assert.Equal(t, "BBB222", cfg.Devices[1].Serial)
}
