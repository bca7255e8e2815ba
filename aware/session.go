// Copyright 2024 The Android Open Source Project
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/Lunaris-AOSP/packages-modules-Wifi/mobly"
)

// msgID hands out process-unique message ids so send confirmations can be
// matched to their message.
var msgID atomic.Int64

func init() { msgID.Store(9999) }

// NextMessageID returns a message id no other call in this process has used.
func NextMessageID() int {
	return int(msgID.Add(1))
}

// AttachSession is an attached Aware interest, identified by the callback id
// of the attach call. Valid until closed or the device is torn down.
type AttachSession struct {
	dev *Device
	// ID is the opaque session token used in follow-up snippet calls.
	ID string
	// MAC is the device's discovery MAC, needed for OOB data paths.
	MAC string
}

// Attach attaches to the Aware service and waits for both the attach
// confirmation and the identity change that carries the discovery MAC.
func (d *Device) Attach(ctx context.Context) (*AttachSession, error) {
	res, err := d.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, "wifiAwareAttach", true)
	if err != nil {
		return nil, errors.Wrap(err, "attach call failed")
	}
	h, err := res.EventHandler(d.Snippet)
	if err != nil {
		return nil, err
	}
	if _, err := h.WaitAndGet(ctx, EventAttached, AttachTimeout); err != nil {
		return nil, errors.Wrap(err, "attach was not confirmed")
	}
	idEv, err := h.WaitAndGet(ctx, EventIdentityChanged, AttachTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "no identity change after attach")
	}
	mac := idEv.String(KeyMAC)
	if mac == "" {
		return nil, errors.New("identity change event carried no MAC")
	}
	d.Log.Infof("Attached, discovery MAC %s", mac)
	return &AttachSession{dev: d, ID: h.ID, MAC: mac}, nil
}

// DiscoverySession is a publish or subscribe session, identified by the
// callback id of the call that created it.
type DiscoverySession struct {
	dev *Device
	// ID is the opaque discovery session token.
	ID      string
	handler *mobly.CallbackHandler
}

// Publish creates a publish discovery session and waits for it to start.
func (a *AttachSession) Publish(ctx context.Context, cfg PublishConfig) (*DiscoverySession, error) {
	return a.startDiscovery(ctx, "wifiAwarePublish", cfg, EventPublishStarted)
}

// Subscribe creates a subscribe discovery session and waits for it to start.
func (a *AttachSession) Subscribe(ctx context.Context, cfg SubscribeConfig) (*DiscoverySession, error) {
	return a.startDiscovery(ctx, "wifiAwareSubscribe", cfg, EventSubscribeStarted)
}

func (a *AttachSession) startDiscovery(ctx context.Context, method string, cfg interface{}, startEvent string) (*DiscoverySession, error) {
	res, err := a.dev.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout, method, a.ID, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s call failed", method)
	}
	h, err := res.EventHandler(a.dev.Snippet)
	if err != nil {
		return nil, err
	}
	if _, err := h.WaitAndGet(ctx, startEvent, CallbackTimeout); err != nil {
		return nil, errors.Wrapf(err, "discovery session did not start (%s)", method)
	}
	return &DiscoverySession{dev: a.dev, ID: h.ID, handler: h}, nil
}

// WaitForDiscovery blocks until the subscriber discovers the published
// service and returns the discovered peer id.
func (s *DiscoverySession) WaitForDiscovery(ctx context.Context) (int, *mobly.Event, error) {
	ev, err := s.handler.WaitAndGet(ctx, EventServiceDiscovered, CallbackTimeout)
	if err != nil {
		return 0, nil, errors.Wrap(err, "service was not discovered")
	}
	peer, ok := ev.Int(KeyPeerID)
	if !ok {
		return 0, nil, errors.New("discovery event carried no peer id")
	}
	return peer, ev, nil
}

// SendMessage sends a short message to peer and waits for the send
// confirmation carrying the same message id.
func (s *DiscoverySession) SendMessage(ctx context.Context, peerID, messageID int, text string) error {
	if _, err := s.dev.Snippet.RPC(ctx, mobly.DefaultRPCResponseTimeout,
		"wifiAwareSendMessage", s.ID, peerID, messageID, text); err != nil {
		return errors.Wrap(err, "send message call failed")
	}
	if _, err := s.handler.WaitForSnippetEvent(ctx, EventMessageSendSucceed, CallbackTimeout, func(ev *mobly.Event) bool {
		id, ok := ev.Int(KeyMessageID)
		return ok && id == messageID
	}); err != nil {
		return errors.Wrapf(err, "message %d was not confirmed sent", messageID)
	}
	return nil
}

// WaitForMessage blocks until a message arrives on this session and returns
// the sender's peer id and the message text.
func (s *DiscoverySession) WaitForMessage(ctx context.Context, timeout time.Duration) (int, string, error) {
	ev, err := s.handler.WaitAndGet(ctx, EventMessageReceived, timeout)
	if err != nil {
		return 0, "", errors.Wrap(err, "no message received")
	}
	peer, ok := ev.Int(KeyPeerID)
	if !ok {
		return 0, "", errors.New("message event carried no peer id")
	}
	return peer, ev.String(KeyReceivedMessage), nil
}

// DiscoveryPair is an established publisher/subscriber relationship with the
// peer ids each side learned about the other.
type DiscoveryPair struct {
	PubSession *DiscoverySession
	SubSession *DiscoverySession
	// PeerIDOnSub identifies the publisher as seen by the subscriber.
	PeerIDOnSub int
	// PeerIDOnPub identifies the subscriber as seen by the publisher.
	PeerIDOnPub int
}

// CreateDiscoveryPair brings up in-band discovery between two devices:
// attach both (staggered by startupOffset), publish on one, subscribe on the
// other, wait for discovery, and exchange one message so the publisher learns
// the subscriber's peer id too.
func CreateDiscoveryPair(ctx context.Context, pub, sub *Device, pCfg PublishConfig, sCfg SubscribeConfig, startupOffset time.Duration) (*DiscoveryPair, error) {
	pAttach, err := pub.Attach(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "publisher attach failed")
	}
	pSess, err := pAttach.Publish(ctx, pCfg)
	if err != nil {
		return nil, errors.Wrap(err, "publish failed")
	}

	// Stagger NAN enablement between the two devices.
	select {
	case <-time.After(startupOffset):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sAttach, err := sub.Attach(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "subscriber attach failed")
	}
	sSess, err := sAttach.Subscribe(ctx, sCfg)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe failed")
	}

	peerOnSub, _, err := sSess.WaitForDiscovery(ctx)
	if err != nil {
		return nil, err
	}
	sub.Log.Infof("Discovered publisher, peer id %d", peerOnSub)

	// One message round trip teaches the publisher the subscriber's peer id.
	mid := NextMessageID()
	if err := sSess.SendMessage(ctx, peerOnSub, mid, "ping from subscriber"); err != nil {
		return nil, err
	}
	peerOnPub, _, err := pSess.WaitForMessage(ctx, CallbackTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "publisher never heard from subscriber")
	}
	pub.Log.Infof("Heard from subscriber, peer id %d", peerOnPub)

	return &DiscoveryPair{
		PubSession:  pSess,
		SubSession:  sSess,
		PeerIDOnSub: peerOnSub,
		PeerIDOnPub: peerOnPub,
	}, nil
}
