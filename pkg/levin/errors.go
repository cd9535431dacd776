package levin

import (
	"errors"
	"fmt"
)

// Frame-level errors. Any of them terminates the connection.
var (
	ErrShortHeader        = errors.New("levin: short bucket header")
	ErrBadSignature       = errors.New("levin: bad bucket signature")
	ErrBadProtocolVersion = errors.New("levin: unsupported protocol version")
	ErrBodyTooLarge       = errors.New("levin: bucket body too large")
	ErrBadFlags           = errors.New("levin: bucket is neither request nor response")
)

// Dispatch and invocation errors.
var (
	ErrHandlerExists      = errors.New("levin: handler already registered")
	ErrInvalidCommandID   = errors.New("levin: command id below 1000")
	ErrNoHandler          = errors.New("levin: no handler registered")
	ErrUnexpectedResponse = errors.New("levin: response without pending invocation")
	ErrResponseMismatch   = errors.New("levin: response does not match oldest pending invocation")
	ErrConnectionClosed   = errors.New("levin: connection closed")
	ErrInvokeTimeout      = errors.New("levin: invocation timed out")
	// ErrInvocationAbandoned closes a connection when a written invocation is
	// given up, since its response could otherwise pair with a later request.
	ErrInvocationAbandoned = errors.New("levin: written invocation abandoned")
	// errClosedAfterResponse stops the write loop once a response flagged
	// with Disconnect has been flushed.
	errClosedAfterResponse = errors.New("levin: closed after response")
)

// FrameError wraps a frame-level violation with the offending header field.
type FrameError struct {
	Err   error
	Value uint64
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v (%d)", e.Err, e.Value)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// ReturnCode is the signed status carried in every bucket header.
type ReturnCode int32

// Return codes defined by the protocol. Negative values are failures.
const (
	ReturnOK                     ReturnCode = 0
	ReturnErrConnection          ReturnCode = -1
	ReturnErrConnectionNotFound  ReturnCode = -2
	ReturnErrConnectionDestroyed ReturnCode = -3
	ReturnErrConnectionTimedOut  ReturnCode = -4
	ReturnErrNoDuplexProtocol    ReturnCode = -5
	ReturnErrHandlerNotDefined   ReturnCode = -6
	ReturnErrFormat              ReturnCode = -7
)

// Success reports whether the code denotes success.
func (c ReturnCode) Success() bool {
	return c >= 0
}

func (c ReturnCode) String() string {
	switch c {
	case ReturnOK:
		return "ok"
	case ReturnErrConnection:
		return "connection_error"
	case ReturnErrConnectionNotFound:
		return "connection_not_found"
	case ReturnErrConnectionDestroyed:
		return "connection_destroyed"
	case ReturnErrConnectionTimedOut:
		return "connection_timed_out"
	case ReturnErrNoDuplexProtocol:
		return "no_duplex_protocol"
	case ReturnErrHandlerNotDefined:
		return "handler_not_defined"
	case ReturnErrFormat:
		return "format_error"
	default:
		if c > 0 {
			return fmt.Sprintf("ok(%d)", int32(c))
		}

		return fmt.Sprintf("error(%d)", int32(c))
	}
}

// ReturnCodeError carries a negative return code. Invocation handlers return
// it to answer with an explicit code, and Invoke returns it when the remote
// peer answered with one.
type ReturnCodeError struct {
	Code ReturnCode
	// Disconnect closes the connection once the response has been written.
	Disconnect bool
}

func (e *ReturnCodeError) Error() string {
	return fmt.Sprintf("levin: return code %s", e.Code)
}

// errorType maps an error to a short label for metrics.
func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrBadProtocolVersion):
		return "bad_version"
	case errors.Is(err, ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, ErrBadFlags):
		return "bad_flags"
	case errors.Is(err, ErrShortHeader):
		return "short_header"
	case errors.Is(err, ErrUnexpectedResponse):
		return "unexpected_response"
	case errors.Is(err, ErrResponseMismatch):
		return "response_mismatch"
	case errors.Is(err, ErrNoHandler):
		return "no_handler"
	case errors.Is(err, ErrInvocationAbandoned):
		return "abandoned"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	}

	var codeErr *ReturnCodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code.String()
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return "decode"
	}

	return "io"
}

// DecodeError wraps a failure to decode a bucket body.
type DecodeError struct {
	Command uint32
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("levin: decoding body of command %d: %v", e.Command, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
