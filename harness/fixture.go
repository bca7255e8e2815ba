// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"context"
	"time"
)

// FixtureImpl prepares shared state (typically the registered devices) for a
// group of tests. SetUp runs once before the group, TearDown once after.
// PreTest and PostTest bracket every case; PostTest sees the case's failure
// state and is where bug report capture happens.
type FixtureImpl interface {
	SetUp(ctx context.Context, s *FixtState) interface{}
	TearDown(ctx context.Context, s *FixtState)
	PreTest(ctx context.Context, s *State)
	PostTest(ctx context.Context, s *State)
}

// Fixture describes a registered fixture.
type Fixture struct {
	Name     string
	Desc     string
	Contacts []string
	Impl     FixtureImpl

	SetUpTimeout    time.Duration
	TearDownTimeout time.Duration
	PreTestTimeout  time.Duration
	PostTestTimeout time.Duration
}

const defaultFixtureTimeout = 2 * time.Minute

func (f *Fixture) setUpTimeout() time.Duration {
	if f.SetUpTimeout > 0 {
		return f.SetUpTimeout
	}
	return defaultFixtureTimeout
}

func (f *Fixture) tearDownTimeout() time.Duration {
	if f.TearDownTimeout > 0 {
		return f.TearDownTimeout
	}
	return defaultFixtureTimeout
}

func (f *Fixture) preTestTimeout() time.Duration {
	if f.PreTestTimeout > 0 {
		return f.PreTestTimeout
	}
	return defaultFixtureTimeout
}

func (f *Fixture) postTestTimeout() time.Duration {
	if f.PostTestTimeout > 0 {
		return f.PostTestTimeout
	}
	return defaultFixtureTimeout
}
