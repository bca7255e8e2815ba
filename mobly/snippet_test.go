// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mobly

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks the snippet wire protocol over an in-memory connection.
type fakeServer struct {
	conn net.Conn
	rd   *bufio.Reader
	// handle maps method names to canned responses.
	handle func(req rpcRequest) rpcResponse
}

func newFakeClientServer(t *testing.T, handle func(req rpcRequest) rpcResponse) (*SnippetClient, *fakeServer) {
	t.Helper()
	cs, ss := net.Pipe()
	srv := &fakeServer{conn: ss, rd: bufio.NewReader(ss), handle: handle}
	go srv.serve()
	t.Cleanup(func() { cs.Close(); ss.Close() })

	return &SnippetClient{
		conn: cs,
		rd:   bufio.NewReader(cs),
		log:  logrus.WithField("snippet", "fake"),
	}, srv
}

func (s *fakeServer) serve() {
	for {
		line, err := s.rd.ReadBytes('\n')
		if err != nil {
			return
		}
		var cmd rpcCmd
		if json.Unmarshal(line, &cmd) == nil && cmd.Cmd == cmdInitiate {
			out, _ := json.Marshal(rpcCmdResponse{Status: true, UID: 1})
			s.conn.Write(append(out, '\n'))
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil || s.handle == nil {
			continue
		}
		res := s.handle(req)
		res.ID = req.ID
		out, _ := json.Marshal(res)
		s.conn.Write(append(out, '\n'))
	}
}

func TestInitializeHandshake(t *testing.T) {
	c, _ := newFakeClientServer(t, nil)
	require.NoError(t, c.initialize(context.Background()))
}

func TestRPCRoundTrip(t *testing.T) {
	c, _ := newFakeClientServer(t, func(req rpcRequest) rpcResponse {
		if req.Method != "wifiAwareIsAvailable" {
			return rpcResponse{Error: "unknown method " + req.Method}
		}
		return rpcResponse{Result: json.RawMessage(`true`)}
	})

	res, err := c.RPC(context.Background(), time.Second, "wifiAwareIsAvailable")
	require.NoError(t, err)
	var avail bool
	require.NoError(t, res.Unmarshal(&avail))
	assert.True(t, avail)
}

func TestRPCErrorAndIDCheck(t *testing.T) {
	calls := 0
	c, _ := newFakeClientServer(t, func(req rpcRequest) rpcResponse {
		calls++
		if calls == 1 {
			return rpcResponse{Error: "java.lang.IllegalStateException: not attached"}
		}
		return rpcResponse{Result: json.RawMessage(`null`)}
	})

	_, err := c.RPC(context.Background(), time.Second, "wifiAwarePublish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IllegalStateException")

	// IDs keep incrementing after a device-side error.
	_, err = c.RPC(context.Background(), time.Second, "wifiAwareCloseAllWifiAwareSession")
	require.NoError(t, err)
	assert.Equal(t, 1, c.requestID-1)
}

func TestRPCTimeout(t *testing.T) {
	c, _ := newFakeClientServer(t, nil)
	// The nil handler only answers the handshake; a method call gets nothing
	// until the read deadline fires.
	_, err := c.RPC(context.Background(), 100*time.Millisecond, "wifiAwareAttach")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response to wifiAwareAttach")
}

func TestEventWaitAndGet(t *testing.T) {
	c, _ := newFakeClientServer(t, func(req rpcRequest) rpcResponse {
		switch req.Method {
		case "connectivityServerSocketAccept":
			return rpcResponse{Result: json.RawMessage(`null`), Callback: "1-1"}
		case "eventWaitAndGet":
			ev := Event{
				CallbackID:   req.Params[0].(string),
				Name:         req.Params[1].(string),
				CreationTime: 1716400000000,
				Data: map[string]interface{}{
					"interfaceName": "aware_data0",
					"channelInMhz":  float64(5220),
					"groupFormed":   true,
				},
			}
			out, _ := json.Marshal(ev)
			return rpcResponse{Result: out}
		default:
			return rpcResponse{Error: fmt.Sprintf("unknown method %s", req.Method)}
		}
	})

	res, err := c.RPC(context.Background(), time.Second, "connectivityServerSocketAccept")
	require.NoError(t, err)
	h, err := res.EventHandler(c)
	require.NoError(t, err)
	assert.Equal(t, "1-1", h.ID)

	ev, err := h.WaitAndGet(context.Background(), "onLinkPropertiesChanged", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "onLinkPropertiesChanged", ev.Name)
	assert.Equal(t, "aware_data0", ev.String("interfaceName"))
	mhz, ok := ev.Int("channelInMhz")
	require.True(t, ok)
	assert.Equal(t, 5220, mhz)
	formed, ok := ev.Bool("groupFormed")
	require.True(t, ok)
	assert.True(t, formed)
}

func TestWaitForSnippetEventPredicateTimeout(t *testing.T) {
	c, _ := newFakeClientServer(t, func(req rpcRequest) rpcResponse {
		// Keep delivering events that never satisfy the predicate.
		ev := Event{Name: "WifiP2pConnectionChanged", Data: map[string]interface{}{"groupFormed": false}}
		out, _ := json.Marshal(ev)
		return rpcResponse{Result: out}
	})
	h := &CallbackHandler{client: c, ID: "1-1"}
	_, err := h.WaitForSnippetEvent(context.Background(), "WifiP2pConnectionChanged", 50*time.Millisecond, func(ev *Event) bool {
		formed, _ := ev.Bool("groupFormed")
		return formed
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no WifiP2pConnectionChanged event matched the predicate")
}

func TestEventCollectionAccessors(t *testing.T) {
	ev := Event{Data: map[string]interface{}{
		"uniqueServiceNames": []interface{}{"uuid:a", "uuid:b", 7},
		"txtRecordMap":       map[string]interface{}{"txtvers": "1", "count": 2},
	}}
	assert.Equal(t, []string{"uuid:a", "uuid:b"}, ev.StringSlice("uniqueServiceNames"))
	assert.Equal(t, map[string]string{"txtvers": "1"}, ev.StringMap("txtRecordMap"))
	assert.Nil(t, ev.StringSlice("missing"))
	assert.Nil(t, ev.StringMap("missing"))
}

func TestEventHandlerRequiresCallback(t *testing.T) {
	res := &RPCResult{Result: json.RawMessage(`null`)}
	_, err := res.EventHandler(&SnippetClient{})
	assert.Error(t, err)
}

func TestLaunchBannerPatterns(t *testing.T) {
	m := protocolPattern.FindStringSubmatch("INSTRUMENTATION_STATUS: SNIPPET START, PROTOCOL 1 0\n")
	require.NotNil(t, m)
	assert.Equal(t, "1", m[1])

	m = portPattern.FindStringSubmatch("INSTRUMENTATION_STATUS: SNIPPET SERVING, PORT 38301\n")
	require.NotNil(t, m)
	assert.Equal(t, "38301", m[1])
}
