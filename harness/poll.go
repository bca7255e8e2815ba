// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package harness

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// PollOptions configures Poll.
type PollOptions struct {
	// Timeout bounds the total polling time. Zero means poll until ctx is done.
	Timeout time.Duration
	// Interval is the delay between attempts. Defaults to 100ms.
	Interval time.Duration
}

// Poll calls f repeatedly until it returns nil, the timeout elapses, or ctx is
// done. The last error from f is returned wrapped in the timeout error so the
// failure shows what condition never held.
func Poll(ctx context.Context, f func(ctx context.Context) error, opts *PollOptions) error {
	interval := 100 * time.Millisecond
	if opts != nil && opts.Interval > 0 {
		interval = opts.Interval
	}
	if opts != nil && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var lastErr error
	for {
		if lastErr = f(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(lastErr, "polling gave up: %v", ctx.Err())
		case <-time.After(interval):
		}
	}
}
