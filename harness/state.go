// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// abortTest is the sentinel panic value used by Fatal to unwind a test body.
type abortTest struct{}

// State is handed to a test body and collects its outcome.
type State struct {
	test *Test
	log  *logrus.Entry

	mu     sync.Mutex
	outDir string
	errs   []string
	fixtV  interface{}
	vars   map[string]string
}

// Param returns the parameter value of the current case. It panics when the
// test was registered without Params, mirroring a misuse of the registry.
func (s *State) Param() interface{} {
	if s.test.val == nil {
		panic(fmt.Sprintf("test %s has no parameter", s.test.Name))
	}
	return s.test.val
}

// FixtValue returns the value produced by the fixture's SetUp.
func (s *State) FixtValue() interface{} { return s.fixtV }

// OutDir returns the directory where the current case writes its artifacts.
func (s *State) OutDir() string { return s.outDir }

// Var returns a runner-provided runtime variable.
func (s *State) Var(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Log logs a message scoped to the current case.
func (s *State) Log(args ...interface{}) { s.log.Info(fmt.Sprint(args...)) }

// Logf logs a formatted message scoped to the current case.
func (s *State) Logf(format string, args ...interface{}) { s.log.Infof(format, args...) }

// Error records a failure and continues the test.
func (s *State) Error(args ...interface{}) {
	s.recordError(fmt.Sprint(args...))
}

// Errorf records a formatted failure and continues the test.
func (s *State) Errorf(format string, args ...interface{}) {
	s.recordError(fmt.Sprintf(format, args...))
}

// Fatal records a failure and aborts the test immediately.
func (s *State) Fatal(args ...interface{}) {
	s.recordError(fmt.Sprint(args...))
	panic(abortTest{})
}

// Fatalf records a formatted failure and aborts the test immediately.
func (s *State) Fatalf(format string, args ...interface{}) {
	s.recordError(fmt.Sprintf(format, args...))
	panic(abortTest{})
}

// HasError reports whether the case has recorded a failure so far. Fixtures
// use it from PostTest to decide whether to capture bug reports.
func (s *State) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) > 0
}

// Errors returns the failure messages recorded so far.
func (s *State) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errs...)
}

func (s *State) recordError(msg string) {
	s.log.Error(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
}

// Run executes a subtest and reports whether it passed. A Fatal inside the
// subtest aborts only the subtest; its errors still fail the enclosing case.
func (s *State) Run(ctx context.Context, name string, f func(ctx context.Context, s *State)) bool {
	sub := &State{
		test:   s.test,
		log:    s.log.WithField("subtest", name),
		outDir: s.outDir,
		fixtV:  s.fixtV,
		vars:   s.vars,
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abortTest); !ok {
					sub.recordError(fmt.Sprintf("subtest %s panicked: %v", name, r))
				}
			}
		}()
		f(ctx, sub)
	}()
	for _, e := range sub.Errors() {
		s.recordError(fmt.Sprintf("subtest %s: %s", name, e))
	}
	return !sub.HasError()
}

// FixtState is handed to fixture SetUp and TearDown.
type FixtState struct {
	*State
}
