// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CaseResult is the outcome of one executed test case.
type CaseResult struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Errors   []string
	OutDir   string
	// SetupFailed marks cases skipped because their fixture failed to set up.
	SetupFailed bool
}

// Failed reports whether the case did not pass.
func (r *CaseResult) Failed() bool { return len(r.Errors) > 0 || r.SetupFailed }

// Runner executes registered tests grouped by fixture.
type Runner struct {
	// Registry supplies tests and fixtures. Defaults to the global registry.
	Registry *Registry
	// OutDir is the root under which per-case output directories are created.
	OutDir string
	// Vars are runtime variables exposed through State.Var (testbed path etc.).
	Vars map[string]string
	// Log receives runner output. Defaults to the standard logger.
	Log *logrus.Logger
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Run executes the given tests sequentially and returns one result per case.
// Tests are grouped by fixture in name order; each group's fixture is set up
// once, and a fixture setup failure fails every test in its group without
// running them.
func (r *Runner) Run(ctx context.Context, tests []*Test) ([]CaseResult, error) {
	reg := r.Registry
	if reg == nil {
		reg = globalRegistry
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if errs := reg.RegistrationErrors(); len(errs) > 0 {
		return nil, errors.Errorf("registration errors: %v", errs)
	}

	groups := make(map[string][]*Test)
	var order []string
	for _, t := range tests {
		if _, ok := groups[t.Fixture]; !ok {
			order = append(order, t.Fixture)
		}
		groups[t.Fixture] = append(groups[t.Fixture], t)
	}

	var results []CaseResult
	for _, fname := range order {
		fixt, ok := reg.Fixture(fname)
		if !ok {
			return nil, errors.Errorf("tests reference unknown fixture %q", fname)
		}
		res, err := r.runGroup(ctx, log, fixt, groups[fname])
		if err != nil {
			return nil, err
		}
		results = append(results, res...)
	}
	return results, nil
}

func (r *Runner) runGroup(ctx context.Context, log *logrus.Logger, fixt *Fixture, tests []*Test) ([]CaseResult, error) {
	fixtOut := filepath.Join(r.OutDir, "fixture."+unsafeName.ReplaceAllString(fixt.Name, "_"))
	if err := os.MkdirAll(fixtOut, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create fixture output dir")
	}
	fs := &FixtState{State: &State{
		test:   &Test{Name: "fixture." + fixt.Name},
		log:    log.WithField("fixture", fixt.Name),
		outDir: fixtOut,
		vars:   r.Vars,
	}}

	log.Infof("Setting up fixture %s", fixt.Name)
	var fixtValue interface{}
	setupOK := runStage(ctx, fixt.setUpTimeout(), fs.State, func(ctx context.Context) {
		fixtValue = fixt.Impl.SetUp(ctx, fs)
	})

	var results []CaseResult
	if !setupOK || fs.HasError() {
		log.Errorf("Fixture %s setup failed; skipping %d tests", fixt.Name, len(tests))
		for _, t := range tests {
			results = append(results, CaseResult{
				Name:        t.Name,
				Start:       time.Now(),
				Errors:      []string{fmt.Sprintf("fixture %s setup failed", fixt.Name)},
				SetupFailed: true,
			})
		}
		return results, nil
	}

	for _, t := range tests {
		results = append(results, r.runCase(ctx, log, fixt, t, fixtValue))
	}

	log.Infof("Tearing down fixture %s", fixt.Name)
	runStage(ctx, fixt.tearDownTimeout(), fs.State, func(ctx context.Context) {
		fixt.Impl.TearDown(ctx, fs)
	})
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, log *logrus.Logger, fixt *Fixture, t *Test, fixtValue interface{}) CaseResult {
	outDir := filepath.Join(r.OutDir, unsafeName.ReplaceAllString(t.Name, "_"))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return CaseResult{Name: t.Name, Start: time.Now(), Errors: []string{err.Error()}}
	}
	s := &State{
		test:   t,
		log:    log.WithField("test", t.Name),
		outDir: outDir,
		fixtV:  fixtValue,
		vars:   r.Vars,
	}

	start := time.Now()
	log.Infof("===== %s =====", t.Name)

	runStage(ctx, fixt.preTestTimeout(), s, func(ctx context.Context) {
		fixt.Impl.PreTest(ctx, s)
	})
	if !s.HasError() {
		if !runStage(ctx, t.Timeout, s, func(ctx context.Context) {
			t.Func(ctx, s)
		}) {
			s.recordError(fmt.Sprintf("test did not finish within %v", t.Timeout))
		}
	}
	runStage(ctx, fixt.postTestTimeout(), s, func(ctx context.Context) {
		fixt.Impl.PostTest(ctx, s)
	})

	res := CaseResult{
		Name:     t.Name,
		Start:    start,
		Duration: time.Since(start),
		Errors:   s.Errors(),
		OutDir:   outDir,
	}
	if res.Failed() {
		log.Errorf("----- %s: FAIL (%v) -----", t.Name, res.Duration.Round(time.Millisecond))
	} else {
		log.Infof("----- %s: PASS (%v) -----", t.Name, res.Duration.Round(time.Millisecond))
	}
	return res
}

// runStage runs f under a deadline with Fatal/panic recovery. It returns false
// when the stage timed out; the goroutine running a timed-out stage is
// abandoned, matching how a wedged device RPC cannot be interrupted anyway.
func runStage(ctx context.Context, timeout time.Duration, s *State, f func(ctx context.Context)) bool {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abortTest); !ok {
					s.recordError(fmt.Sprintf("panic: %v\n%s", r, identifyPanic()))
				}
			}
		}()
		f(sctx)
	}()

	select {
	case <-done:
		return true
	case <-sctx.Done():
		if ctx.Err() != nil {
			// Whole run cancelled, not a per-stage timeout.
			<-done
			return true
		}
		return false
	}
}

func identifyPanic() string {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, false)
	lines := strings.Split(string(buf[:n]), "\n")
	if len(lines) > 12 {
		lines = lines[:12]
	}
	return strings.Join(lines, "\n")
}
