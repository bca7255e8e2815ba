// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

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

// fakeAdb puts a stub adb on PATH that prints out for any invocation.
func fakeAdb(t *testing.T, out string) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\ncat <<'EOF'\n" + out + "\nEOF\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adb"), []byte(script), 0755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestPublishConfigJSON(t *testing.T) {
	cfg := DefaultPublishConfig("GoogleTestXYZ", PublishTypeSolicited)
	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "GoogleTestXYZ", m["serviceName"])
	assert.Equal(t, float64(PublishTypeSolicited), m["publishType"])
	assert.Equal(t, true, m["terminateNotificationEnabled"])
	// Zero-valued optionals stay off the wire.
	assert.NotContains(t, m, "matchFilter")
	assert.NotContains(t, m, "rangingEnabled")
}

func TestPublishConfigJSONWithMatchFilter(t *testing.T) {
	cfg := DefaultPublishConfig("GoogleTestXYZ", PublishTypeUnsolicited)
	cfg.MatchFilter = []string{"bytes 1 and 2", "bytes 3 and 4"}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, []interface{}{"bytes 1 and 2", "bytes 3 and 4"}, m["matchFilter"])
}

func TestSubscribeConfigJSON(t *testing.T) {
	cfg := DefaultSubscribeConfig("GoogleTestXYZ", SubscribeTypeActive)
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, float64(SubscribeTypeActive), m["subscribeType"])
	assert.Equal(t, "ssi in subscriber", m["serviceSpecificInfo"])
}

func TestNextMessageIDUnique(t *testing.T) {
	a, b := NextMessageID(), NextMessageID()
	assert.NotEqual(t, a, b)
	assert.Greater(t, b, a)
}

func TestParsePingStats(t *testing.T) {
	out := `PING fe80::38:a0ff:fe45:1%aware_data0 56 data bytes
64 bytes from fe80::38:a0ff:fe45:1: icmp_seq=1 ttl=64 time=3.21 ms

--- fe80::38:a0ff:fe45:1%aware_data0 ping statistics ---
3 packets transmitted, 3 received, 0% packet loss, time 2003ms`
	tx, rx, err := parsePingStats(out)
	require.NoError(t, err)
	assert.Equal(t, 3, tx)
	assert.Equal(t, 3, rx)
}

func TestParsePingStatsBSDStyle(t *testing.T) {
	out := "3 packets transmitted, 0 packets received, 100.0% packet loss"
	tx, rx, err := parsePingStats(out)
	require.NoError(t, err)
	assert.Equal(t, 3, tx)
	assert.Equal(t, 0, rx)
}

func TestParsePingStatsGarbage(t *testing.T) {
	_, _, err := parsePingStats("connect: Network is unreachable")
	assert.Error(t, err)
}

func TestPing6FailsOnPartialLoss(t *testing.T) {
	fakeAdb(t, `PING fe80::1%aware_data0 56 data bytes
64 bytes from fe80::1: icmp_seq=1 ttl=64 time=3.21 ms

--- fe80::1%aware_data0 ping statistics ---
3 packets transmitted, 1 received, 66.6% packet loss, time 2003ms`)
	d := &Device{ADB: &adb.Device{Serial: "FAKE"}, Log: logrus.WithField("serial", "FAKE")}
	err := d.Ping6(context.Background(), "fe80::1", "aware_data0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lost 2 of 3 packets")
}

func TestPing6PassesOnZeroLoss(t *testing.T) {
	fakeAdb(t, `--- fe80::1%aware_data0 ping statistics ---
3 packets transmitted, 3 received, 0% packet loss, time 2003ms`)
	d := &Device{ADB: &adb.Device{Serial: "FAKE"}, Log: logrus.WithField("serial", "FAKE")}
	assert.NoError(t, d.Ping6(context.Background(), "fe80::1", "aware_data0"))
}

// fakeSnippetDevice backs a Device with an in-process snippet server that
// answers the availability monitoring methods. Stop notifications land on the
// returned channel.
func fakeSnippetDevice(t *testing.T) (*Device, chan struct{}) {
	t.Helper()
	cli, srv := net.Pipe()
	t.Cleanup(func() {
		cli.Close()
		srv.Close()
	})

	stopped := make(chan struct{}, 1)
	go func() {
		rd := bufio.NewReader(srv)
		for {
			line, err := rd.ReadBytes('\n')
			if err != nil {
				return
			}
			var req struct {
				ID     int    `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal(line, &req); err != nil {
				return
			}
			var res string
			switch req.Method {
			case "wifiAwareIsAvailable":
				res = fmt.Sprintf(`{"id":%d,"result":false}`, req.ID)
			case "wifiAwareMonitorStateChange":
				res = fmt.Sprintf(`{"id":%d,"result":null,"callback":"1-1"}`, req.ID)
			case "eventWaitAndGet":
				res = fmt.Sprintf(`{"id":%d,"result":{"callbackId":"1-1","name":%q,"creationTime":0,"data":{}}}`,
					req.ID, EventAwareAvailable)
			case "wifiAwareMonitorStopStateChange":
				stopped <- struct{}{}
				res = fmt.Sprintf(`{"id":%d,"result":null}`, req.ID)
			case "connectivityUnregisterNetwork":
				res = fmt.Sprintf(`{"id":%d,"result":null}`, req.ID)
			default:
				res = fmt.Sprintf(`{"id":%d,"error":"unknown method %s"}`, req.ID, req.Method)
			}
			if _, err := srv.Write([]byte(res + "\n")); err != nil {
				return
			}
		}
	}()

	d := &Device{
		Snippet: mobly.NewClientForConn(cli, logrus.WithField("snippet", "fake")),
		Log:     logrus.WithField("serial", "FAKE"),
	}
	return d, stopped
}

func TestWaitForAvailableStopsMonitor(t *testing.T) {
	d, stopped := fakeSnippetDevice(t)
	require.NoError(t, d.WaitForAvailable(context.Background()))
	select {
	case <-stopped:
	default:
		t.Error("availability monitor left running after the wait")
	}
}

func TestUnregisterNetwork(t *testing.T) {
	d, _ := fakeSnippetDevice(t)
	assert.NoError(t, d.UnregisterNetwork(context.Background(), "net-1"))
}
