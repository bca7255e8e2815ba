// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"path"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry holds registered tests and fixtures.
type Registry struct {
	mu       sync.Mutex
	tests    map[string]*Test
	fixtures map[string]*Fixture
	errs     []error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tests:    make(map[string]*Test),
		fixtures: make(map[string]*Fixture),
	}
}

// globalRegistry receives registrations from test file init functions.
var globalRegistry = NewRegistry()

// AddTest registers a test in the global registry. It is meant to be called
// from init in test files; registration errors surface from RegistrationErrors
// so that a broken bundle fails loudly at startup rather than silently
// dropping cases.
func AddTest(t *Test) {
	globalRegistry.AddTest(t)
}

// AddFixture registers a fixture in the global registry.
func AddFixture(f *Fixture) {
	globalRegistry.AddFixture(f)
}

// GlobalRegistry returns the registry that init-time registrations target.
func GlobalRegistry() *Registry {
	return globalRegistry
}

// AddTest registers t, expanding its Params into individual cases.
func (r *Registry) AddTest(t *Test) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Name == "" || t.Func == nil {
		r.errs = append(r.errs, errors.Errorf("test registration missing name or func: %+v", t))
		return
	}
	if t.Fixture == "" {
		r.errs = append(r.errs, errors.Errorf("test %s does not declare a fixture", t.Name))
		return
	}
	for _, c := range t.expand() {
		if c.Timeout == 0 {
			c.Timeout = DefaultTestTimeout
		}
		if _, ok := r.tests[c.Name]; ok {
			r.errs = append(r.errs, errors.Errorf("test %s registered twice", c.Name))
			continue
		}
		r.tests[c.Name] = c
	}
}

// AddFixture registers f.
func (r *Registry) AddFixture(f *Fixture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.Name == "" || f.Impl == nil {
		r.errs = append(r.errs, errors.Errorf("fixture registration missing name or impl: %+v", f))
		return
	}
	if _, ok := r.fixtures[f.Name]; ok {
		r.errs = append(r.errs, errors.Errorf("fixture %s registered twice", f.Name))
		return
	}
	r.fixtures[f.Name] = f
}

// RegistrationErrors returns all errors collected during registration.
func (r *Registry) RegistrationErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Tests returns all registered tests sorted by name.
func (r *Registry) Tests() []*Test {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ts []*Test
	for _, t := range r.tests {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
	return ts
}

// Fixture looks up a fixture by name.
func (r *Registry) Fixture(name string) (*Fixture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fixtures[name]
	return f, ok
}

// SelectTests returns the tests matching any of the glob patterns, sorted by
// name. With no patterns every test matches.
func (r *Registry) SelectTests(patterns []string) ([]*Test, error) {
	all := r.Tests()
	if len(patterns) == 0 {
		return all, nil
	}
	var sel []*Test
	for _, t := range all {
		for _, p := range patterns {
			ok, err := path.Match(p, t.Name)
			if err != nil {
				return nil, errors.Wrapf(err, "bad test pattern %q", p)
			}
			if ok {
				sel = append(sel, t)
				break
			}
		}
	}
	return sel, nil
}
