// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mobly

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Event is an asynchronous notification posted by the snippet server,
// correlated to the originating call by its callback id. Events are consumed
// once and not persisted.
type Event struct {
	CallbackID   string                 `json:"callbackId"`
	Name         string                 `json:"name"`
	CreationTime int64                  `json:"creationTime"`
	Data         map[string]interface{} `json:"data"`
}

// String returns the string value under key, or "" when absent or non-string.
func (e *Event) String(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value under key. JSON numbers arrive as float64.
func (e *Event) Int(key string) (int, bool) {
	if v, ok := e.Data[key].(float64); ok {
		return int(v), true
	}
	return 0, false
}

// Bool returns the boolean value under key.
func (e *Event) Bool(key string) (bool, bool) {
	v, ok := e.Data[key].(bool)
	return v, ok
}

// StringSlice returns the strings under key, or nil when absent. Non-string
// elements are skipped.
func (e *Event) StringSlice(key string) []string {
	raw, ok := e.Data[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StringMap returns the string-to-string map under key, or nil when absent.
// Non-string values are skipped.
func (e *Event) StringMap(key string) map[string]string {
	raw, ok := e.Data[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// CallbackHandler waits for events correlated to one snippet call.
type CallbackHandler struct {
	client *SnippetClient

	// ID is the correlation id assigned by the server to the originating call.
	ID string
}

// EventHandler returns a handler for the events spawned by the call that
// produced this result. It fails when the method posts no events.
func (r *RPCResult) EventHandler(c *SnippetClient) (*CallbackHandler, error) {
	if r.Callback == "" {
		return nil, errors.New("RPC produced no callback id; method posts no events")
	}
	return &CallbackHandler{client: c, ID: r.Callback}, nil
}

// rpcMargin is added on top of the device-side wait so the device answers
// (with a timeout error of its own) before the host-side read deadline fires.
const rpcMargin = 10 * time.Second

// WaitAndGet blocks until the named event arrives or timeout elapses. The
// wait itself happens on the device via the snippet's eventWaitAndGet method;
// exceeding the timeout is terminal for the caller's test case.
func (h *CallbackHandler) WaitAndGet(ctx context.Context, name string, timeout time.Duration) (*Event, error) {
	res, err := h.client.RPC(ctx, timeout+rpcMargin, "eventWaitAndGet", h.ID, name, timeout.Milliseconds())
	if err != nil {
		return nil, errors.Wrapf(err, "did not receive %s event within %v", name, timeout)
	}
	var ev Event
	if err := res.Unmarshal(&ev); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s event", name)
	}
	return &ev, nil
}

// GetAll returns all already-posted events with the given name without waiting.
func (h *CallbackHandler) GetAll(ctx context.Context, name string) ([]Event, error) {
	res, err := h.client.RPC(ctx, DefaultRPCResponseTimeout, "eventGetAll", h.ID, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s events", name)
	}
	var evs []Event
	if err := res.Unmarshal(&evs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s events", name)
	}
	return evs, nil
}

// WaitForSnippetEvent waits for a named event and asserts a data predicate on
// it, retrying on events that arrive with the right name but wrong payload.
func (h *CallbackHandler) WaitForSnippetEvent(ctx context.Context, name string, timeout time.Duration, pred func(*Event) bool) (*Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errors.Errorf("no %s event matched the predicate within %v", name, timeout)
		}
		ev, err := h.WaitAndGet(ctx, name, remaining)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(ev) {
			return ev, nil
		}
	}
}
