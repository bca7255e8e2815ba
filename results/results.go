// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package results records per-run test verdicts. Records go to a SQLite
// database so runs accumulate across invocations of the runner, and a YAML
// summary of the current run is written next to the run's artifacts.
package results

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// Verdict is the outcome class of one test case.
type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictFail  Verdict = "FAIL"
	VerdictError Verdict = "ERROR" // fixture setup failed; the case never ran
)

// Record is the stored outcome of one executed case.
type Record struct {
	ID       string        `yaml:"id"`
	RunID    string        `yaml:"-"`
	Testbed  string        `yaml:"-"`
	Name     string        `yaml:"name"`
	Verdict  Verdict       `yaml:"verdict"`
	Start    time.Time     `yaml:"start"`
	Duration time.Duration `yaml:"duration"`
	Details  string        `yaml:"details,omitempty"`
	OutDir   string        `yaml:"out_dir,omitempty"`
}

// Summary is the YAML document written at the end of a run.
type Summary struct {
	RunID    string    `yaml:"run_id"`
	Testbed  string    `yaml:"testbed"`
	Start    time.Time `yaml:"start"`
	Records  []Record  `yaml:"records"`
	Executed int       `yaml:"executed"`
	Passed   int       `yaml:"passed"`
	Failed   int       `yaml:"failed"`
}

const schema = `
CREATE TABLE IF NOT EXISTS test_records (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL,
	testbed  TEXT NOT NULL,
	name     TEXT NOT NULL,
	verdict  TEXT NOT NULL,
	start    TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	details  TEXT,
	out_dir  TEXT
);
CREATE INDEX IF NOT EXISTS test_records_run ON test_records(run_id);
`

// Recorder accumulates records for one run.
type Recorder struct {
	runID   string
	testbed string
	start   time.Time
	db      *sql.DB
	records []Record
}

// NewRecorder opens (creating if needed) the results database under dir and
// starts a new run scoped to the named testbed.
func NewRecorder(dir, testbedName string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create results dir")
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "results.db"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open results database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply results schema")
	}
	return &Recorder{
		runID:   ulid.Make().String(),
		testbed: testbedName,
		start:   time.Now(),
		db:      db,
	}, nil
}

// RunID returns the ULID identifying this run.
func (r *Recorder) RunID() string { return r.runID }

// Record stores one case outcome.
func (r *Recorder) Record(name string, verdict Verdict, start time.Time, d time.Duration, details []string, outDir string) error {
	rec := Record{
		ID:       uuid.NewString(),
		RunID:    r.runID,
		Testbed:  r.testbed,
		Name:     name,
		Verdict:  verdict,
		Start:    start,
		Duration: d,
		Details:  strings.Join(details, "\n"),
		OutDir:   outDir,
	}
	r.records = append(r.records, rec)
	_, err := r.db.Exec(
		`INSERT INTO test_records (id, run_id, testbed, name, verdict, start, duration_ms, details, out_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Testbed, rec.Name, string(rec.Verdict),
		rec.Start, rec.Duration.Milliseconds(), rec.Details, rec.OutDir)
	return errors.Wrapf(err, "failed to store record for %s", name)
}

// Summary builds the summary of the records stored so far.
func (r *Recorder) Summary() Summary {
	s := Summary{
		RunID:   r.runID,
		Testbed: r.testbed,
		Start:   r.start,
		Records: append([]Record(nil), r.records...),
	}
	for _, rec := range r.records {
		s.Executed++
		if rec.Verdict == VerdictPass {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// WriteSummary writes the run summary as YAML to path.
func (r *Recorder) WriteSummary(path string) error {
	b, err := yaml.Marshal(r.Summary())
	if err != nil {
		return errors.Wrap(err, "failed to marshal run summary")
	}
	return errors.Wrap(os.WriteFile(path, b, 0644), "failed to write run summary")
}

// Close releases the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
