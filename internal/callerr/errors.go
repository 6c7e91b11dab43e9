// Package callerr holds the error taxonomy shared by the relay, the
// session client and the peer orchestrator.
package callerr

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of them.
var (
	ErrTransport   = errors.New("transport error")
	ErrProtocol    = errors.New("protocol error")
	ErrRouting     = errors.New("routing error")
	ErrMedia       = errors.New("media error")
	ErrNegotiation = errors.New("negotiation error")
)

var (
	ErrReconnectExhausted = fmt.Errorf("%w: reconnect attempts exhausted", ErrTransport)
	ErrConnectInFlight    = fmt.Errorf("%w: connect already in progress", ErrTransport)
	ErrNotConnected       = fmt.Errorf("%w: not connected", ErrTransport)
	ErrClosed             = fmt.Errorf("%w: closed", ErrTransport)
	ErrMalformedMessage   = fmt.Errorf("%w: malformed message", ErrProtocol)
	ErrUnknownPeer        = fmt.Errorf("%w: unknown peer", ErrRouting)
	ErrNoLocalStream      = fmt.Errorf("%w: no local stream available", ErrMedia)
	ErrDuplicatePeer      = fmt.Errorf("%w: connection already exists", ErrNegotiation)
	ErrNegotiationTimeout = fmt.Errorf("%w: timed out", ErrNegotiation)
	ErrLinkFailed         = fmt.Errorf("%w: link failed", ErrNegotiation)
)

// Error decorates an error with the operation and, when relevant, the
// remote peer it concerns.
type Error struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
