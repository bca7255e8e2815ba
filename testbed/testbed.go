// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testbed loads the YAML description of the physical testbed: which
// Android devices participate, how many a suite needs, and where run output
// goes.
package testbed

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one device slot in the testbed.
type DeviceConfig struct {
	// Serial is the adb serial of the device.
	Serial string `yaml:"serial"`
	// Label is a human-readable role hint, e.g. "publisher".
	Label string `yaml:"label,omitempty"`
	// SnippetPackage overrides the suite's default snippet APK package.
	SnippetPackage string `yaml:"snippet_package,omitempty"`
	// SnippetApk is a host path to the snippet APK. When set, fixtures
	// install it on devices that do not already have the package.
	SnippetApk string `yaml:"snippet_apk,omitempty"`
}

// Config is a parsed testbed description.
type Config struct {
	// Name identifies the testbed in logs and result records.
	Name string `yaml:"name"`
	// OutputRoot is where run artifacts land. Defaults to "out".
	OutputRoot string `yaml:"output_root,omitempty"`
	// MinDevices is the number of devices a suite needs. Defaults to 2.
	MinDevices int `yaml:"min_devices,omitempty"`
	// Devices lists the participating devices in registration order.
	Devices []DeviceConfig `yaml:"devices"`
}

// deviceSerialsEnv, when set, replaces the configured device list with a
// comma-separated list of serials. It allows pointing a checked-in testbed
// file at whatever happens to be plugged into a local workstation.
const deviceSerialsEnv = "WIFI_TESTBED_SERIALS"

// Load reads a testbed config from path. A .env file next to the working
// directory is honored for the override variables before the file is parsed.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read testbed config")
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse testbed config %s", path)
	}
	return cfg, nil
}

// Parse decodes and validates a testbed config, applying env overrides.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "bad YAML")
	}
	if serials := os.Getenv(deviceSerialsEnv); serials != "" {
		cfg.Devices = nil
		for _, s := range strings.Split(serials, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Devices = append(cfg.Devices, DeviceConfig{Serial: s})
			}
		}
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "out"
	}
	if cfg.MinDevices == 0 {
		cfg.MinDevices = 2
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Name == "" {
		return errors.New("testbed has no name")
	}
	if len(c.Devices) < c.MinDevices {
		return errors.Errorf("testbed has %d devices, need at least %d", len(c.Devices), c.MinDevices)
	}
	seen := make(map[string]struct{})
	for _, d := range c.Devices {
		if d.Serial == "" {
			return errors.New("testbed device with empty serial")
		}
		if _, ok := seen[d.Serial]; ok {
			return errors.Errorf("duplicate device serial %s", d.Serial)
		}
		seen[d.Serial] = struct{}{}
	}
	return nil
}
