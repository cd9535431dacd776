package node

import (
	"errors"
	"fmt"
	"strings"
)

// Error type constants for categorization.
const (
	ErrPeerNetworkMismatchType = "network_mismatch"
	ErrPeerHandshakeType       = "handshake"
	ErrPeerCapacityType        = "capacity"
)

// PeerError describes why a peer was refused or dropped. Type is used as a
// metric label.
type PeerError struct {
	// Msg is the human-readable error message.
	Msg string
	// ErrorType is a machine-readable error type used for metrics.
	ErrorType string
}

var (
	// ErrPeerTooSoon indicates the address was tried within the cool-off window.
	ErrPeerTooSoon = PeerError{Msg: "too soon", ErrorType: "too_soon"}
	// ErrPeerNetworkMismatch indicates the peer belongs to another network.
	ErrPeerNetworkMismatch = PeerError{Msg: "wrong network id", ErrorType: ErrPeerNetworkMismatchType}
	// ErrPeerSelf indicates we connected to ourselves.
	ErrPeerSelf = PeerError{Msg: "connected to self", ErrorType: "self"}
	// ErrPeerDuplicate indicates a session with the same peer id already exists.
	ErrPeerDuplicate = PeerError{Msg: "already connected", ErrorType: "duplicate"}
	// ErrPeerMaxPeers indicates the peer table is full.
	ErrPeerMaxPeers = PeerError{Msg: "max peers reached", ErrorType: ErrPeerCapacityType}
	// ErrPeerHandshakeFailed indicates the handshake invocation failed.
	ErrPeerHandshakeFailed = PeerError{Msg: "handshake failed", ErrorType: ErrPeerHandshakeType}
	// ErrPeerHandshakeTimeout indicates an inbound peer never completed a handshake.
	ErrPeerHandshakeTimeout = PeerError{Msg: "handshake timeout", ErrorType: ErrPeerHandshakeType}
	// ErrPeerNotHandshaked indicates a request arrived before the handshake.
	ErrPeerNotHandshaked = PeerError{Msg: "handshake not completed", ErrorType: ErrPeerHandshakeType}
	// ErrPeerDialFailed indicates every dial attempt failed.
	ErrPeerDialFailed = PeerError{Msg: "dial failed", ErrorType: "dial"}
)

// Error implements the error interface.
func (e PeerError) Error() string {
	return e.Msg
}

// WithDetails returns a copy of e with details appended to the message.
func (e PeerError) WithDetails(details string) PeerError {
	return PeerError{
		Msg:       fmt.Sprintf("%s: %s", e.Msg, details),
		ErrorType: e.ErrorType,
	}
}

// Is matches any PeerError of the same type and base message, so wrapped
// errors created by WithDetails still match the sentinel.
func (e PeerError) Is(target error) bool {
	t, ok := target.(PeerError)
	if !ok {
		return false
	}

	return t.ErrorType == e.ErrorType && strings.HasPrefix(e.Msg, t.Msg)
}

// Type returns the error type for metrics and categorization.
func (e PeerError) Type() string {
	return e.ErrorType
}

func errorType(err error) string {
	var typed interface{ Type() string }
	if errors.As(err, &typed) {
		return typed.Type()
	}

	return "unknown"
}
