// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command multidevice runs the host-driven multi-device Wi-Fi test suites
// against the Android devices described by a testbed config.
//
// Usage:
//
//	multidevice -testbed testbed.yaml 'aware.*'
//	multidevice -testbed testbed.yaml -list
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/harness"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/results"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/testbed"

	// Test bundles register themselves from init.
	_ "github.com/Lunaris-AOSP/packages-modules-Wifi/bundles/aware"
	_ "github.com/Lunaris-AOSP/packages-modules-Wifi/bundles/direct"
)

func main() {
	os.Exit(run())
}

func run() int {
	testbedPath := flag.String("testbed", "testbed.yaml", "path to the testbed YAML config")
	outDir := flag.String("out", "", "output root; defaults to the testbed's output_root")
	list := flag.Bool("list", false, "list matching tests without running them")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	reg := harness.GlobalRegistry()
	if errs := reg.RegistrationErrors(); len(errs) > 0 {
		for _, err := range errs {
			log.Error("Registration error: ", err)
		}
		return 1
	}

	patterns := flag.Args()
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	tests, err := reg.SelectTests(patterns)
	if err != nil {
		log.Error("Bad test pattern: ", err)
		return 1
	}
	if len(tests) == 0 {
		log.Errorf("No tests match %v", patterns)
		return 1
	}
	if *list {
		for _, t := range tests {
			fmt.Println(t.Name)
		}
		return 0
	}

	cfg, err := testbed.Load(*testbedPath)
	if err != nil {
		log.Error("Failed to load the testbed config: ", err)
		return 1
	}
	root := *outDir
	if root == "" {
		root = cfg.OutputRoot
	}
	runRoot := filepath.Join(root, time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(runRoot, 0755); err != nil {
		log.Error("Failed to create the output directory: ", err)
		return 1
	}

	rec, err := results.NewRecorder(runRoot, cfg.Name)
	if err != nil {
		log.Error("Failed to open the result store: ", err)
		return 1
	}
	defer rec.Close()
	log.Infof("Run %s: %d tests on testbed %q, output in %s", rec.RunID(), len(tests), cfg.Name, runRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &harness.Runner{
		Registry: reg,
		OutDir:   runRoot,
		Vars:     map[string]string{"testbed": *testbedPath},
		Log:      log,
	}
	caseResults, err := runner.Run(ctx, tests)
	if err != nil {
		log.Error("Run aborted: ", err)
		return 1
	}

	failed := 0
	for _, r := range caseResults {
		verdict := results.VerdictPass
		switch {
		case r.SetupFailed:
			verdict = results.VerdictError
		case len(r.Errors) > 0:
			verdict = results.VerdictFail
		}
		if r.Failed() {
			failed++
		}
		if err := rec.Record(r.Name, verdict, r.Start, r.Duration, r.Errors, r.OutDir); err != nil {
			log.Error("Failed to record a result: ", err)
		}
		log.Infof("%-5s %s (%v)", verdict, r.Name, r.Duration.Round(time.Millisecond))
	}

	summaryPath := filepath.Join(runRoot, "summary.yaml")
	if err := rec.WriteSummary(summaryPath); err != nil {
		log.Error("Failed to write the run summary: ", err)
	}
	log.Infof("%d executed, %d failed, summary in %s", len(caseResults), failed, summaryPath)
	if failed > 0 {
		return 1
	}
	return 0
}
