// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

// PublishConfig is the host-side mirror of android.net.wifi.aware.PublishConfig,
// marshalled as-is into the snippet call.
type PublishConfig struct {
	ServiceName           string      `json:"serviceName"`
	ServiceSpecificInfo   string      `json:"serviceSpecificInfo,omitempty"`
	MatchFilter           []string    `json:"matchFilter,omitempty"`
	PublishType           PublishType `json:"publishType"`
	TerminateNotification bool        `json:"terminateNotificationEnabled"`
	RangingEnabled        bool        `json:"rangingEnabled,omitempty"`
}

// SubscribeConfig mirrors android.net.wifi.aware.SubscribeConfig.
type SubscribeConfig struct {
	ServiceName           string        `json:"serviceName"`
	ServiceSpecificInfo   string        `json:"serviceSpecificInfo,omitempty"`
	MatchFilter           []string      `json:"matchFilter,omitempty"`
	SubscribeType         SubscribeType `json:"subscribeType"`
	TerminateNotification bool          `json:"terminateNotificationEnabled"`
	MaxDistanceMm         int           `json:"maxDistanceMm,omitempty"`
}

// DefaultPublishConfig returns the publish configuration the test suite uses
// unless a case needs something special.
func DefaultPublishConfig(serviceName string, t PublishType) PublishConfig {
	return PublishConfig{
		ServiceName:           serviceName,
		ServiceSpecificInfo:   "ssi in publisher",
		PublishType:           t,
		TerminateNotification: true,
	}
}

// DefaultSubscribeConfig returns the matching subscribe configuration.
func DefaultSubscribeConfig(serviceName string, t SubscribeType) SubscribeConfig {
	return SubscribeConfig{
		ServiceName:           serviceName,
		ServiceSpecificInfo:   "ssi in subscriber",
		SubscribeType:         t,
		TerminateNotification: true,
	}
}

// NetworkRequest mirrors the snippet's connectivityRequestNetwork argument.
type NetworkRequest struct {
	TransportType          int         `json:"transportType"`
	NetworkSpecifierParcel interface{} `json:"networkSpecifierParcel"`
}
