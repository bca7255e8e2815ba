// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir, "aware-bench-1")
	require.NoError(t, err)
	defer r.Close()

	start := time.Now()
	require.NoError(t, r.Record("aware.Attached", VerdictPass, start, 12*time.Second, nil, ""))
	require.NoError(t, r.Record("aware.Protocols.oob", VerdictFail, start, 40*time.Second,
		[]string{"ping6 lost all packets"}, filepath.Join(dir, "aware.Protocols.oob")))

	var n int
	require.NoError(t, r.db.QueryRow(
		"SELECT COUNT(*) FROM test_records WHERE run_id = ?", r.RunID()).Scan(&n))
	assert.Equal(t, 2, n)

	var verdict, details string
	require.NoError(t, r.db.QueryRow(
		"SELECT verdict, details FROM test_records WHERE name = ?", "aware.Protocols.oob").
		Scan(&verdict, &details))
	assert.Equal(t, "FAIL", verdict)
	assert.Contains(t, details, "ping6")
}

func TestSummaryCountsAndYAML(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir, "tb")
	require.NoError(t, err)
	defer r.Close()

	now := time.Now()
	require.NoError(t, r.Record("a", VerdictPass, now, time.Second, nil, ""))
	require.NoError(t, r.Record("b", VerdictFail, now, time.Second, []string{"x"}, ""))
	require.NoError(t, r.Record("c", VerdictError, now, 0, []string{"fixture failed"}, ""))

	s := r.Summary()
	assert.Equal(t, 3, s.Executed)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 2, s.Failed)

	path := filepath.Join(dir, "test_summary.yaml")
	require.NoError(t, r.WriteSummary(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var back Summary
	require.NoError(t, yaml.Unmarshal(b, &back))
	assert.Equal(t, s.RunID, back.RunID)
	require.Len(t, back.Records, 3)
	assert.Equal(t, VerdictError, back.Records[2].Verdict)
}

func TestRunIDsAreUniquePerRecorder(t *testing.T) {
	dir := t.TempDir()
	r1, err := NewRecorder(dir, "tb")
	require.NoError(t, err)
	defer r1.Close()
	r2, err := NewRecorder(dir, "tb")
	require.NoError(t, err)
	defer r2.Close()
	assert.NotEqual(t, r1.RunID(), r2.RunID())
}
