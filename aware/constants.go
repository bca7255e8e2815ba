// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import "time"

// SnippetPackage is the Wi-Fi Aware snippet APK installed on every device
// under test. Testbed configs may override it per device.
const SnippetPackage = "com.google.snippet.wifi.aware"

// MinSDKVersion is the first Android SDK level shipping the Wi-Fi Aware API.
const MinSDKVersion = 26

// RuntimePermissions are granted to the snippet so discovery APIs work
// without UI prompts.
var RuntimePermissions = []string{
	"android.permission.ACCESS_FINE_LOCATION",
	"android.permission.ACCESS_COARSE_LOCATION",
	"android.permission.NEARBY_WIFI_DEVICES",
}

// PublishType selects how a publisher advertises its service.
type PublishType int

const (
	PublishTypeUnsolicited PublishType = 0
	PublishTypeSolicited   PublishType = 1
)

// SubscribeType selects how a subscriber looks for services.
type SubscribeType int

const (
	SubscribeTypePassive SubscribeType = 0
	SubscribeTypeActive  SubscribeType = 1
)

// Data-path roles for out-of-band network specifiers.
const (
	DataPathInitiator = 0
	DataPathResponder = 1
)

// TransportWifiAware is NetworkCapabilities.TRANSPORT_WIFI_AWARE.
const TransportWifiAware = 5

// Snippet callback event names.
const (
	EventAttached            = "onAttached"
	EventAttachFailed        = "onAttachFailed"
	EventIdentityChanged     = "onIdentityChanged"
	EventPublishStarted      = "onPublishStarted"
	EventSubscribeStarted    = "onSubscribeStarted"
	EventSessionConfigFailed = "onSessionConfigFailed"
	EventServiceDiscovered   = "onServiceDiscovered"
	EventMessageSendSucceed  = "onMessageSendSucceeded"
	EventMessageSendFailed   = "onMessageSendFailed"
	EventMessageReceived     = "onMessageReceived"

	// ConnectivityManager network callback events.
	EventNetworkAvailable    = "onAvailable"
	EventNetworkCapabilities = "onCapabilitiesChanged"
	EventNetworkLink         = "onLinkPropertiesChanged"
	EventNetworkUnavailable  = "onUnavailable"
	EventNetworkLost         = "onLost"

	// Aware availability broadcasts.
	EventAwareAvailable    = "WifiAwareAvailable"
	EventAwareNotAvailable = "WifiAwareNotAvailable"
)

// Keys into callback event data payloads.
const (
	KeyMAC                 = "mac"
	KeyPeerID              = "peerId"
	KeyMessageID           = "messageId"
	KeyReceivedMessage     = "receivedMessage"
	KeyServiceSpecificInfo = "serviceSpecificInfo"
	KeyInterfaceName       = "interfaceName"
	KeyIPv6                = "awareIpv6"
	KeyChannelMhz          = "channelInMhz"
)

// Timeouts mirror what the protocol needs in practice: attach and discovery
// callbacks arrive within seconds on healthy hardware, and anything slower is
// a failure worth surfacing.
const (
	AttachTimeout         = 10 * time.Second
	CallbackTimeout       = 30 * time.Second
	NetworkRequestTimeout = 15 * time.Second

	// ClusterSyncWait gives two attached devices time to synchronize with
	// each other. For OOB discovery there is no callback to wait on, so a
	// fixed delay is the only mechanism (short of retrying the data path).
	ClusterSyncWait = 5 * time.Second

	// DeviceStartupOffset staggers NAN enablement between two devices.
	DeviceStartupOffset = time.Second
)
