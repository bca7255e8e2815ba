// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direct

import "time"

// SnippetPackage is the Wi-Fi Direct snippet APK used on devices under test.
const SnippetPackage = "com.google.snippet.wifi.direct"

// ServiceType mirrors WifiP2pServiceInfo service type constants.
type ServiceType int

const (
	ServiceTypeAll     ServiceType = 0
	ServiceTypeBonjour ServiceType = 1
	ServiceTypeUpnp    ServiceType = 2
)

// Snippet callback event names.
const (
	EventP2pStateChanged         = "WifiP2pStateChanged"
	EventThisDeviceChanged       = "WifiP2pThisDeviceChanged"
	EventConnectionChanged       = "WifiP2pConnectionChanged"
	EventPeersChanged            = "WifiP2pPeersChanged"
	EventDnsSdServiceAvailable   = "onDnsSdServiceAvailable"
	EventDnsSdTxtRecordAvailable = "onDnsSdTxtRecordAvailable"
	EventUpnpServiceAvailable    = "onUpnpServiceAvailable"
)

// Keys into callback event data payloads.
const (
	KeyDeviceAddress       = "deviceAddress"
	KeySourceDeviceAddress = "sourceDeviceAddress"
	KeyInstanceName        = "instanceName"
	KeyRegistrationType    = "registrationType"
	KeyFullDomainName      = "fullDomainName"
	KeyTxtRecordMap        = "txtRecordMap"
	KeyUniqueServiceNames  = "uniqueServiceNames"
	KeyGroupFormed         = "groupFormed"
	KeyIsGroupOwner        = "isGroupOwner"
	KeyGroupOwnerAddress   = "groupOwnerHostAddress"
)

// CallbackTimeout bounds p2p callback waits. Service discovery responses can
// trickle in over several probe rounds, so it is generous.
const CallbackTimeout = 30 * time.Second

// BonjourServiceConfig describes a local DNS-SD service registration.
type BonjourServiceConfig struct {
	InstanceName string            `json:"instanceName"`
	ServiceType  string            `json:"serviceType"`
	TxtRecord    map[string]string `json:"txtRecord,omitempty"`
}

// UpnpServiceConfig describes a local UPnP service registration.
type UpnpServiceConfig struct {
	UUID     string   `json:"uuid"`
	Device   string   `json:"device"`
	Services []string `json:"services"`
}

// upnpTestUUID identifies the UPnP services the suite registers.
const upnpTestUUID = "6859dede-8574-59ab-9332-123456789011"

// DefaultUpnpService is the UPnP service the responder registers.
var DefaultUpnpService = UpnpServiceConfig{
	UUID:   upnpTestUUID,
	Device: "urn:schemas-upnp-org:device:MediaServer:1",
	Services: []string{
		"urn:schemas-upnp-org:service:AVTransport:1",
		"urn:schemas-upnp-org:service:ConnectionManager:1",
	},
}

// DefaultIppService is a Bonjour printing service the responder registers.
var DefaultIppService = BonjourServiceConfig{
	InstanceName: "MyPrinter",
	ServiceType:  "_ipp._tcp",
	TxtRecord:    map[string]string{"txtvers": "1", "pdl": "application/postscript"},
}

// DefaultAfpService is a Bonjour file-sharing service the responder registers.
var DefaultAfpService = BonjourServiceConfig{
	InstanceName: "Example",
	ServiceType:  "_afpovertcp._tcp",
	TxtRecord:    map[string]string{},
}

// DnsSdResponse is one expected DNS-SD discovery response.
type DnsSdResponse struct {
	InstanceName     string
	RegistrationType string
}

// DnsSdTxtRecord is one expected DNS-SD TXT record.
type DnsSdTxtRecord struct {
	FullDomainName string
	Record         map[string]string
}

// AllDnsSdResponses are the responses a requester must see once the default
// Bonjour services are registered.
var AllDnsSdResponses = []DnsSdResponse{
	{InstanceName: "MyPrinter", RegistrationType: "_ipp._tcp.local."},
	{InstanceName: "Example", RegistrationType: "_afpovertcp._tcp.local."},
}

// AllDnsSdTxtRecords are the TXT records a requester must see.
var AllDnsSdTxtRecords = []DnsSdTxtRecord{
	{FullDomainName: "myprinter._ipp._tcp.local.", Record: map[string]string{"txtvers": "1", "pdl": "application/postscript"}},
	{FullDomainName: "example._afpovertcp._tcp.local.", Record: map[string]string{}},
}

// AllUpnpServices are the unique service names a requester must see once the
// default UPnP service is registered.
var AllUpnpServices = []string{
	"uuid:" + upnpTestUUID,
	"uuid:" + upnpTestUUID + "::upnp:rootdevice",
	"uuid:" + upnpTestUUID + "::urn:schemas-upnp-org:device:MediaServer:1",
	"uuid:" + upnpTestUUID + "::urn:schemas-upnp-org:service:AVTransport:1",
	"uuid:" + upnpTestUUID + "::urn:schemas-upnp-org:service:ConnectionManager:1",
}
