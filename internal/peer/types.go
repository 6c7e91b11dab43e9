// Package peer turns relayed negotiation payloads into one media link per
// remote participant and carries control messages over those links.
package peer

import (
	"encoding/json"

	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/protocol"
)

// Role decides which side of a pair sends the offer.
type Role int

const (
	// RoleInitiator is taken by the member already in the room when
	// someone joins.
	RoleInitiator Role = iota
	// RoleResponder is taken by the joiner for every existing member.
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// State is the lifecycle of one PeerConnection.
type State int

const (
	StateCreated State = iota
	StateNegotiating
	StateConnected
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Signaler sends a negotiation payload to a remote participant through the
// relay. It must not block; false means the payload was dropped.
type Signaler interface {
	SendSignal(to string, payload json.RawMessage) bool
}

// Observer is told about roster and connection changes. Calls arrive in
// order on a single goroutine.
type Observer interface {
	ParticipantJoined(peerID, nickname string)
	ParticipantLeft(peerID string)
	ConnectionStateChanged(peerID string, state State, err error)
	StreamReceived(peerID string, stream *media.RemoteStream)
	ControlReceived(peerID string, msg *protocol.ControlMessage)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) ParticipantJoined(string, string)                 {}
func (NopObserver) ParticipantLeft(string)                           {}
func (NopObserver) ConnectionStateChanged(string, State, error)      {}
func (NopObserver) StreamReceived(string, *media.RemoteStream)       {}
func (NopObserver) ControlReceived(string, *protocol.ControlMessage) {}

// LinkHandler receives a Link's callbacks. They may arrive on any
// goroutine but never from inside a call into the Link.
type LinkHandler interface {
	// LocalSignal is a payload that must reach the remote peer.
	LocalSignal(payload protocol.SignalPayload)
	Connected()
	// Failed ends the link. err may be nil.
	Failed(err error)
	Track(stream *media.RemoteStream)
	ControlOpen()
	Control(data []byte)
}

// Link is one negotiated media session with a remote peer.
type Link interface {
	// Start begins negotiation. Initiators open the control channel and
	// produce an offer; responders wait for one.
	Start() error
	ApplySignal(payload *protocol.SignalPayload) error
	SendControl(data []byte) error
	Close() error
}

// LinkFactory creates links. local may be nil when there is nothing to
// send.
type LinkFactory interface {
	NewLink(peerID string, role Role, local *media.LocalStream, handler LinkHandler) (Link, error)
}
