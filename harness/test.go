// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package harness provides the test registry and runner for host-driven
// multi-device Wi-Fi integration tests. Test files register themselves from
// init and are executed sequentially by a Runner against a fixture that owns
// the attached Android devices.
package harness

import (
	"context"
	"time"
)

// TestFunc is the body of a test case.
type TestFunc func(ctx context.Context, s *State)

// Test describes a registered test case.
type Test struct {
	// Func is the test body. Required.
	Func TestFunc
	// Name identifies the test, e.g. "aware.Protocols.ib_unsolicited_passive".
	// Required and unique across the registry.
	Name string
	// Desc is a short human-readable description.
	Desc string
	// Contacts lists the owners to reach when the test misbehaves.
	Contacts []string
	// Attr carries free-form attributes used for test selection.
	Attr []string
	// Fixture names the fixture the test runs under. Required; every test
	// in this suite needs devices, which only fixtures provide.
	Fixture string
	// Timeout bounds the test body. Defaults to DefaultTestTimeout.
	Timeout time.Duration
	// Params expands the test into one registered case per parameter.
	Params []Param

	// Val carries the parameter value after expansion.
	val interface{}
}

// Param describes a single parameterization of a test.
type Param struct {
	// Name is appended to the base test name, separated by a dot.
	Name string
	// Val is exposed to the test body through State.Param.
	Val interface{}
	// ExtraAttr is merged into the base test's Attr.
	ExtraAttr []string
	// Timeout overrides the base test's timeout when non-zero.
	Timeout time.Duration
}

// DefaultTestTimeout applies to tests that do not declare their own.
const DefaultTestTimeout = 5 * time.Minute

// expand returns the concrete cases a registration produces: the test itself
// when it has no Params, otherwise one copy per parameter.
func (t *Test) expand() []*Test {
	if len(t.Params) == 0 {
		c := *t
		return []*Test{&c}
	}
	var cases []*Test
	for _, p := range t.Params {
		c := *t
		c.Params = nil
		if p.Name != "" {
			c.Name = t.Name + "." + p.Name
		}
		c.val = p.Val
		c.Attr = append(append([]string(nil), t.Attr...), p.ExtraAttr...)
		if p.Timeout != 0 {
			c.Timeout = p.Timeout
		}
		cases = append(cases, &c)
	}
	return cases
}
