// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mobly

import "encoding/json"

// rpcCmd is the command format used to initialize the snippet RPC server.
type rpcCmd struct {
	Cmd string `json:"cmd"`
	UID int    `json:"uid"`
}

// rpcCmdResponse is the response format to rpcCmd.
type rpcCmdResponse struct {
	Status bool `json:"status"`
	UID    int  `json:"uid"`
}

// rpcRequest is the request format for snippet method calls.
type rpcRequest struct {
	ID     int           `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// rpcResponse is the response format for rpcRequest. Result varies by method
// and is unmarshalled by the caller; Callback correlates asynchronous events
// with the call that spawned them.
type rpcResponse struct {
	ID       int             `json:"id"`
	Result   json.RawMessage `json:"result"`
	Callback string          `json:"callback"`
	Error    string          `json:"error"`
}

const (
	cmdInitiate = "initiate"

	// uninitializedUID is sent in the handshake; the server assigns the real session UID.
	uninitializedUID = -1
)
