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

func noop(ctx context.Context, s *State) {}

func TestAddTestExpandsParams(t *testing.T) {
	r := NewRegistry()
	r.AddTest(&Test{
		Name:    "aware.Protocols",
		Func:    noop,
		Fixture: "awareDevices",
		Attr:    []string{"suite:aware"},
		Params: []Param{
			{Name: "ib_unsolicited_passive", Val: 1},
			{Name: "ib_solicited_active", Val: 2, ExtraAttr: []string{"unstable"}},
			{Name: "oob", Val: 3, Timeout: 10 * time.Minute},
		},
	})
	require.Empty(t, r.RegistrationErrors())

	ts := r.Tests()
	require.Len(t, ts, 3)
	assert.Equal(t, "aware.Protocols.ib_solicited_active", ts[0].Name)
	assert.Equal(t, []string{"suite:aware", "unstable"}, ts[0].Attr)
	assert.Equal(t, DefaultTestTimeout, ts[0].Timeout)
	assert.Equal(t, "aware.Protocols.oob", ts[2].Name)
	assert.Equal(t, 10*time.Minute, ts[2].Timeout)
	assert.Equal(t, 3, ts[2].val)
}

func TestAddTestRejectsDuplicatesAndMissingFixture(t *testing.T) {
	r := NewRegistry()
	r.AddTest(&Test{Name: "direct.ServiceDiscovery", Func: noop, Fixture: "directDevices"})
	r.AddTest(&Test{Name: "direct.ServiceDiscovery", Func: noop, Fixture: "directDevices"})
	r.AddTest(&Test{Name: "direct.GroupOwner", Func: noop})
	assert.Len(t, r.RegistrationErrors(), 2)
	assert.Len(t, r.Tests(), 1)
}

func TestSelectTests(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"aware.Attached", "aware.Message", "direct.ServiceDiscovery"} {
		r.AddTest(&Test{Name: name, Func: noop, Fixture: "f"})
	}

	sel, err := r.SelectTests([]string{"aware.*"})
	require.NoError(t, err)
	require.Len(t, sel, 2)
	assert.Equal(t, "aware.Attached", sel[0].Name)

	all, err := r.SelectTests(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = r.SelectTests([]string{"[bad"})
	assert.Error(t, err)
}
