// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mobly implements the host side of the Mobly snippet RPC protocol:
// launching a snippet APK's RPC server over adb instrumentation, forwarding
// its TCP port, and exchanging newline-delimited JSON requests and responses.
// The wire format and the remote execution environment are owned by the
// on-device snippet server; this package is a consumer only.
package mobly

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/adb"
)

// instrumentationRunner is the instrumentation entry point every Mobly
// snippet APK exposes.
const instrumentationRunner = "com.google.android.mobly.snippet.SnippetRunner"

// snippetProtocolVersion is the only protocol major version this client speaks.
const snippetProtocolVersion = "1"

// DefaultRPCResponseTimeout bounds a synchronous snippet call.
const DefaultRPCResponseTimeout = 60 * time.Second

var (
	protocolPattern = regexp.MustCompile(`SNIPPET START, PROTOCOL ([0-9]+) ([0-9]+)`)
	portPattern     = regexp.MustCompile(`SNIPPET SERVING, PORT ([0-9]+)`)
)

// SnippetClient drives one snippet server on one device. It is confined to a
// single logical thread of control; calls are serialized internally.
type SnippetClient struct {
	device *adb.Device
	pkg    string
	log    *logrus.Entry

	mu        sync.Mutex
	conn      net.Conn
	rd        *bufio.Reader
	hostPort  int
	requestID int
}

// NewSnippetClient launches the snippet APK's RPC server on the device,
// forwards its serving port to the host, connects and performs the protocol
// handshake. Callers defer Cleanup to release the forward and connection.
func NewSnippetClient(ctx context.Context, d *adb.Device, pkg string) (*SnippetClient, error) {
	c := &SnippetClient{
		device: d,
		pkg:    pkg,
		log:    d.Log().WithField("snippet", pkg),
	}
	if err := c.launch(ctx); err != nil {
		return nil, err
	}
	if err := c.initialize(ctx); err != nil {
		c.closeConn(ctx)
		return nil, err
	}
	return c, nil
}

// launch starts the snippet instrumentation, parses the protocol banner and
// serving port from its stdout, and dials the forwarded port.
func (c *SnippetClient) launch(ctx context.Context) error {
	cmd := c.device.ShellCommand(ctx,
		"am", "instrument", "--user", "0", "-w", "-e", "action", "start",
		c.pkg+"/"+instrumentationRunner)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start command to launch snippet server")
	}
	// The instrumentation process runs until the snippet is stopped; its exit
	// must still be reaped.
	launched := false
	defer func() {
		if launched {
			go cmd.Wait()
			return
		}
		cmd.Process.Kill()
		cmd.Wait()
	}()

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "failed to read stdout while looking for the snippet protocol version")
	}
	m := protocolPattern.FindStringSubmatch(line)
	if m == nil {
		return errors.Errorf("protocol version not found in %q", line)
	}
	if m[1] != snippetProtocolVersion {
		return errors.Errorf("incorrect protocol version; got %v, want %v", m[1], snippetProtocolVersion)
	}

	line, err = reader.ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "failed to read stdout while looking for the snippet port")
	}
	m = portPattern.FindStringSubmatch(line)
	if m == nil {
		return errors.Errorf("serving port not found in %q", line)
	}
	devicePort, err := strconv.Atoi(m[1])
	if err != nil {
		return errors.Wrap(err, "failed to convert port to int")
	}

	hostPort, err := c.device.ForwardTCP(ctx, devicePort)
	if err != nil {
		return errors.Wrap(err, "port forwarding failed")
	}
	c.log.Infof("Snippet serving on device port %d, forwarded to host port %d", devicePort, hostPort)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", "localhost:"+strconv.Itoa(hostPort))
	if err != nil {
		c.device.RemoveForwardTCP(ctx, hostPort)
		return errors.Wrap(err, "failed to connect to snippet server")
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	c.hostPort = hostPort
	launched = true
	return nil
}

// NewClientForConn wraps an already-established connection to a snippet
// server, bypassing the instrumentation launch and port forward. The caller
// owns the connection lifetime.
func NewClientForConn(conn net.Conn, log *logrus.Entry) *SnippetClient {
	return &SnippetClient{
		conn: conn,
		rd:   bufio.NewReader(conn),
		log:  log,
	}
}

// initialize performs the session handshake required before method calls.
func (c *SnippetClient) initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, err := json.Marshal(&rpcCmd{Cmd: cmdInitiate, UID: uninitializedUID})
	if err != nil {
		return errors.Wrap(err, "failed to marshal initiate command")
	}
	if err := c.send(body); err != nil {
		return errors.Wrap(err, "failed to send initiate command")
	}
	b, err := c.receive(ctx, DefaultRPCResponseTimeout)
	if err != nil {
		return errors.Wrap(err, "failed to read response to initiate command")
	}
	var res rpcCmdResponse
	if err := json.Unmarshal(b, &res); err != nil {
		return errors.Wrap(err, "failed to unmarshal initiate command response")
	}
	if !res.Status {
		return errors.New("snippet RPC initiate command did not succeed")
	}
	return nil
}

// send writes a request followed by the newline the server requires.
func (c *SnippetClient) send(body []byte) error {
	if _, err := c.conn.Write(append(body, '\n')); err != nil {
		return errors.Wrap(err, "failed to write to snippet server")
	}
	return nil
}

// receive reads one newline-terminated response under the given deadline.
func (c *SnippetClient) receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultRPCResponseTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	line, err := c.rd.ReadBytes('\n')
	if err != nil {
		return nil, errors.Wrap(err, "failed to read from snippet server")
	}
	return line, nil
}

// RPCResult is the outcome of a snippet method call.
type RPCResult struct {
	// Result is the raw JSON result; unmarshal it per-method with Unmarshal.
	Result json.RawMessage
	// Callback correlates asynchronous events posted by this call. Empty for
	// methods that post no events.
	Callback string
}

// Unmarshal decodes the call result into v.
func (r *RPCResult) Unmarshal(v interface{}) error {
	return errors.Wrap(json.Unmarshal(r.Result, v), "failed to unmarshal RPC result")
}

// RPC invokes a snippet method and waits up to timeout for its response.
// A non-positive timeout means DefaultRPCResponseTimeout.
func (c *SnippetClient) RPC(ctx context.Context, timeout time.Duration, method string, args ...interface{}) (*RPCResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.requestID
	c.requestID++
	req := rpcRequest{ID: id, Method: method, Params: make([]interface{}, 0)}
	if len(args) > 0 {
		req.Params = args
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s request", method)
	}
	c.log.Debugf("RPC request: %s", body)
	if err := c.send(body); err != nil {
		return nil, err
	}

	b, err := c.receive(ctx, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "no response to %s", method)
	}
	c.log.Debugf("RPC response: %s", b)
	var res rpcResponse
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal response to %s", method)
	}
	if res.Error != "" {
		return nil, errors.Errorf("%s failed on device: %v", method, res.Error)
	}
	if res.ID != id {
		return nil, errors.Errorf("response ID mismatch; got %v, want %v", res.ID, id)
	}
	return &RPCResult{Result: res.Result, Callback: res.Callback}, nil
}

// Reconnect re-establishes the TCP connection and session to an
// already-running snippet server, after e.g. an adb hiccup.
func (c *SnippetClient) Reconnect(ctx context.Context) error {
	c.closeConn(ctx)
	if err := c.launch(ctx); err != nil {
		return errors.Wrap(err, "failed to relaunch snippet connection")
	}
	return c.initialize(ctx)
}

// Stop stops the snippet instrumentation on the device and releases host
// resources. The client is unusable afterwards.
func (c *SnippetClient) Stop(ctx context.Context) error {
	var firstErr error
	if err := c.device.ShellCommand(ctx,
		"am", "instrument", "--user", "0", "-w", "-e", "action", "stop",
		c.pkg+"/"+instrumentationRunner).Run(); err != nil {
		firstErr = errors.Wrap(err, "failed to stop snippet on device")
	}
	if err := c.closeConn(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Cleanup stops the snippet and logs rather than returns errors; meant for
// deferred teardown.
func (c *SnippetClient) Cleanup(ctx context.Context) {
	if err := c.Stop(ctx); err != nil {
		c.log.Warnf("Snippet cleanup: %v", err)
	}
}

func (c *SnippetClient) closeConn(ctx context.Context) error {
	var firstErr error
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			firstErr = errors.Wrap(err, "failed to close snippet connection")
		}
		c.conn = nil
		c.rd = nil
	}
	if c.hostPort != 0 {
		if err := c.device.RemoveForwardTCP(ctx, c.hostPort); err != nil && firstErr == nil {
			firstErr = err
		}
		c.hostPort = 0
	}
	return firstErr
}
