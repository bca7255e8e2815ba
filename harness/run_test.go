// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFixture records the lifecycle calls the runner makes.
type fakeFixture struct {
	setUps, tearDowns, preTests, postTests int
	failSetUp                              bool
	sawErrorInPost                         bool
}

func (f *fakeFixture) SetUp(ctx context.Context, s *FixtState) interface{} {
	f.setUps++
	if f.failSetUp {
		s.Error("device unavailable")
		return nil
	}
	return "fixture-value"
}

func (f *fakeFixture) TearDown(ctx context.Context, s *FixtState) { f.tearDowns++ }
func (f *fakeFixture) PreTest(ctx context.Context, s *State)      { f.preTests++ }
func (f *fakeFixture) PostTest(ctx context.Context, s *State) {
	f.postTests++
	if s.HasError() {
		f.sawErrorInPost = true
	}
}

func newRunRegistry(fixt FixtureImpl) *Registry {
	r := NewRegistry()
	r.AddFixture(&Fixture{Name: "fake", Impl: fixt})
	return r
}

func TestRunnerPassAndFail(t *testing.T) {
	fixt := &fakeFixture{}
	r := newRunRegistry(fixt)
	r.AddTest(&Test{Name: "b.Fails", Fixture: "fake", Func: func(ctx context.Context, s *State) {
		s.Fatal("expected availability, got none")
	}})
	r.AddTest(&Test{Name: "a.Passes", Fixture: "fake", Func: func(ctx context.Context, s *State) {
		assert.Equal(t, "fixture-value", s.FixtValue())
		s.Log("all good")
	}})

	tests, err := r.SelectTests(nil)
	require.NoError(t, err)
	runner := &Runner{Registry: r, OutDir: t.TempDir()}
	results, err := runner.Run(context.Background(), tests)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a.Passes", results[0].Name)
	assert.False(t, results[0].Failed())
	assert.Equal(t, "b.Fails", results[1].Name)
	assert.True(t, results[1].Failed())
	assert.Contains(t, results[1].Errors[0], "expected availability")

	assert.Equal(t, 1, fixt.setUps)
	assert.Equal(t, 1, fixt.tearDowns)
	assert.Equal(t, 2, fixt.preTests)
	assert.Equal(t, 2, fixt.postTests)
	assert.True(t, fixt.sawErrorInPost)
}

func TestRunnerFixtureSetupFailureSkipsTests(t *testing.T) {
	fixt := &fakeFixture{failSetUp: true}
	r := newRunRegistry(fixt)
	ran := false
	r.AddTest(&Test{Name: "a.Test", Fixture: "fake", Func: func(ctx context.Context, s *State) { ran = true }})

	tests, _ := r.SelectTests(nil)
	runner := &Runner{Registry: r, OutDir: t.TempDir()}
	results, err := runner.Run(context.Background(), tests)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].SetupFailed)
	assert.False(t, ran)
	assert.Equal(t, 0, fixt.preTests)
}

func TestRunnerTestTimeout(t *testing.T) {
	r := newRunRegistry(&fakeFixture{})
	r.AddTest(&Test{
		Name:    "a.Slow",
		Fixture: "fake",
		Timeout: 50 * time.Millisecond,
		Func: func(ctx context.Context, s *State) {
			<-ctx.Done()
			// Keep blocking past the deadline; the runner must not hang.
			time.Sleep(200 * time.Millisecond)
		},
	})

	tests, _ := r.SelectTests(nil)
	runner := &Runner{Registry: r, OutDir: t.TempDir()}
	results, err := runner.Run(context.Background(), tests)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
	assert.Contains(t, results[0].Errors[0], "did not finish")
}

func TestRunnerRecoversPanics(t *testing.T) {
	r := newRunRegistry(&fakeFixture{})
	r.AddTest(&Test{Name: "a.Panics", Fixture: "fake", Func: func(ctx context.Context, s *State) {
		panic("boom")
	}})

	tests, _ := r.SelectTests(nil)
	runner := &Runner{Registry: r, OutDir: t.TempDir()}
	results, err := runner.Run(context.Background(), tests)
	require.NoError(t, err)
	require.True(t, results[0].Failed())
	assert.Contains(t, results[0].Errors[0], "panic: boom")
}

func TestSubtestFailurePropagates(t *testing.T) {
	r := newRunRegistry(&fakeFixture{})
	r.AddTest(&Test{Name: "a.Subtests", Fixture: "fake", Func: func(ctx context.Context, s *State) {
		ok := s.Run(ctx, "first", func(ctx context.Context, s *State) { s.Fatal("nope") })
		assert.False(t, ok)
		// A failed subtest must not abort the parent body.
		s.Log("still running")
	}})

	tests, _ := r.SelectTests(nil)
	runner := &Runner{Registry: r, OutDir: t.TempDir()}
	results, err := runner.Run(context.Background(), tests)
	require.NoError(t, err)
	assert.True(t, results[0].Failed())
}

func TestPollTimesOut(t *testing.T) {
	start := time.Now()
	err := Poll(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	}, &PollOptions{Timeout: 80 * time.Millisecond, Interval: 10 * time.Millisecond})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, err.Error(), "polling gave up")
}

func TestPollSucceeds(t *testing.T) {
	n := 0
	err := Poll(context.Background(), func(ctx context.Context) error {
		n++
		if n < 3 {
			return assert.AnError
		}
		return nil
	}, &PollOptions{Timeout: time.Second, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
