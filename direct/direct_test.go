// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direct

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/adb"
	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// fakeSnippetDevice backs a Device with an in-process snippet server that
// answers every method with a null result and records the raw requests.
func fakeSnippetDevice(t *testing.T) (*Device, chan string) {
	t.Helper()
	cli, srv := net.Pipe()
	t.Cleanup(func() {
		cli.Close()
		srv.Close()
	})

	calls := make(chan string, 16)
	go func() {
		rd := bufio.NewReader(srv)
		for {
			line, err := rd.ReadBytes('\n')
			if err != nil {
				return
			}
			var req struct {
				ID int `json:"id"`
			}
			if err := json.Unmarshal(line, &req); err != nil {
				return
			}
			calls <- string(line)
			if _, err := srv.Write([]byte(fmt.Sprintf(`{"id":%d,"result":null}`, req.ID) + "\n")); err != nil {
				return
			}
		}
	}()

	d := &Device{
		Snippet: mobly.NewClientForConn(cli, logrus.WithField("snippet", "fake")),
		Log:     logrus.WithField("serial", "FAKE"),
	}
	return d, calls
}

func TestMatchDnsSdResponse(t *testing.T) {
	expected := []DnsSdResponse{
		{InstanceName: "MyPrinter", RegistrationType: "_ipp._tcp.local."},
		{InstanceName: "Example", RegistrationType: "_afpovertcp._tcp.local."},
	}
	assert.Equal(t, 0, matchDnsSdResponse(expected, "MyPrinter", "_ipp._tcp.local."))
	assert.Equal(t, 1, matchDnsSdResponse(expected, "Example", "_afpovertcp._tcp.local."))
	assert.Equal(t, -1, matchDnsSdResponse(expected, "MyPrinter", "_afpovertcp._tcp.local."))
	assert.Equal(t, -1, matchDnsSdResponse(expected, "Other", "_ipp._tcp.local."))
}

func TestMatchTxtRecord(t *testing.T) {
	expected := []DnsSdTxtRecord{
		{FullDomainName: "myprinter._ipp._tcp.local.", Record: map[string]string{"txtvers": "1", "pdl": "application/postscript"}},
		{FullDomainName: "example._afpovertcp._tcp.local.", Record: map[string]string{}},
	}

	// Domain matching is case-insensitive.
	assert.Equal(t, 0, matchTxtRecord(expected, "MyPrinter._ipp._tcp.local.",
		map[string]string{"txtvers": "1", "pdl": "application/postscript"}))
	assert.Equal(t, 1, matchTxtRecord(expected, "example._afpovertcp._tcp.local.", nil))

	// Record contents must match exactly.
	assert.Equal(t, -1, matchTxtRecord(expected, "myprinter._ipp._tcp.local.",
		map[string]string{"txtvers": "1"}))
	assert.Equal(t, -1, matchTxtRecord(expected, "myprinter._ipp._tcp.local.",
		map[string]string{"txtvers": "1", "pdl": "application/pdf"}))
	assert.Equal(t, -1, matchTxtRecord(expected, "unknown._ipp._tcp.local.", nil))
}

func TestRemoveIndex(t *testing.T) {
	s := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "c"}, removeIndex(s, 1))
	assert.Equal(t, []string{"b", "c"}, removeIndex([]string{"a", "b", "c"}, 0))
	assert.Empty(t, removeIndex([]string{"a"}, 0))
}

func TestValidateGroupRoles(t *testing.T) {
	goSide := &ConnectionInfo{GroupFormed: true, IsGroupOwner: true, GroupOwnerAddress: "192.168.49.1"}
	clientSide := &ConnectionInfo{GroupFormed: true, IsGroupOwner: false, GroupOwnerAddress: "192.168.49.1"}
	assert.NoError(t, ValidateGroupRoles(goSide, clientSide))
	assert.NoError(t, ValidateGroupRoles(clientSide, goSide))

	bothGO := &ConnectionInfo{GroupFormed: true, IsGroupOwner: true, GroupOwnerAddress: "192.168.49.1"}
	err := ValidateGroupRoles(goSide, bothGO)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one group owner")

	otherGO := &ConnectionInfo{GroupFormed: true, IsGroupOwner: false, GroupOwnerAddress: "192.168.49.7"}
	err = ValidateGroupRoles(goSide, otherGO)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestPingFailsOnPartialLoss(t *testing.T) {
	dir := t.TempDir()
	script := `#!/bin/sh
cat <<'EOF'
--- 192.168.49.1 ping statistics ---
3 packets transmitted, 2 received, 33.3% packet loss, time 2004ms
EOF
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adb"), []byte(script), 0755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	d := &Device{ADB: &adb.Device{Serial: "FAKE"}, Log: logrus.WithField("serial", "FAKE")}
	err := d.Ping(context.Background(), "192.168.49.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lost 1 of 3 packets")
}

func TestConnectConfigJSON(t *testing.T) {
	b, err := json.Marshal(ConnectConfig{DeviceAddress: "02:00:11:22:33:44", GroupOwnerIntent: 15, WpsSetup: WpsPbc})
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "02:00:11:22:33:44", m["deviceAddress"])
	assert.Equal(t, float64(15), m["groupOwnerIntent"])
	assert.Equal(t, float64(0), m["wpsSetup"])
}

func TestCreateGroup(t *testing.T) {
	d, calls := fakeSnippetDevice(t)
	require.NoError(t, d.CreateGroup(context.Background()))
	assert.Contains(t, <-calls, "wifiP2pCreateGroup")
}

func TestJoinGroupUsesZeroIntent(t *testing.T) {
	d, calls := fakeSnippetDevice(t)
	require.NoError(t, d.JoinGroup(context.Background(), "02:00:11:22:33:44"))
	call := <-calls
	assert.Contains(t, call, "wifiP2pConnect")
	assert.Contains(t, call, `"deviceAddress":"02:00:11:22:33:44"`)
	assert.Contains(t, call, `"groupOwnerIntent":0`)
}

func TestDefaultUpnpServiceNames(t *testing.T) {
	// Every advertised unique service name derives from the registered UUID,
	// root device and service list.
	require.Len(t, AllUpnpServices, 3+len(DefaultUpnpService.Services))
	for _, usn := range AllUpnpServices {
		assert.Contains(t, usn, DefaultUpnpService.UUID)
	}
	assert.Contains(t, AllUpnpServices[2], DefaultUpnpService.Device)
}
