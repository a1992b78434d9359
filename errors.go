package mailmux

import "errors"

// Errors reported by the frame, mailbox, and session machinery. RPC-layer
// errors (UnknownService, NotAuthenticated, and so on) live in mailmux/rpc.
var (
	// ErrInvalidFrame is reported when a frame violates the wire codec: an
	// unknown type, a declared length exceeding the configured maximum, or a
	// zero-length More/Last frame (use Empty/EmptyLast instead). Any error
	// wrapping ErrInvalidFrame is protocol fatal for the mailbox that
	// produced it.
	ErrInvalidFrame = errors.New("mailmux: invalid frame")

	// ErrMailboxClosed names an operation on a mailbox whose session has
	// already closed. No function in this package returns it: enqueueing on
	// a closed session's mailbox reports no error.
	ErrMailboxClosed = errors.New("mailmux: mailbox closed")

	// ErrPostmasterStopped names a Postmaster used after Stop. No function
	// in this package returns it: signals sent after Stop report no error.
	ErrPostmasterStopped = errors.New("mailmux: postmaster stopped")

	// ErrFrameTooLarge names a frame payload exceeding max_frame_data. No
	// function in this package returns it: NewMessage splits a long payload
	// across frames, and NewCommandMessage does not check the length.
	ErrFrameTooLarge = errors.New("mailmux: frame payload too large")
)

// CloseReason classifies why a session ended, reported to both peers where
// possible.
type CloseReason byte

const (
	// CloseUnspecified is the zero value; a session that has not closed, or
	// whose close reason was never recorded.
	CloseUnspecified CloseReason = iota

	// CloseClientClosing means the client ended the session voluntarily.
	CloseClientClosing

	// CloseServerClosing means the server ended the session voluntarily.
	CloseServerClosing

	// CloseSocketError means the underlying transport failed.
	CloseSocketError

	// CloseProtocolError means a wire-format invariant was violated.
	CloseProtocolError

	// CloseApplicationError means the application layer requested closure
	// following an unrecoverable error of its own.
	CloseApplicationError

	// CloseAuthenticationFailure means the handshake's authentication step
	// failed or timed out.
	CloseAuthenticationFailure

	// CloseTimeOut means the connection- or ping-timeout deadline elapsed.
	CloseTimeOut
)

func (r CloseReason) String() string {
	switch r {
	case CloseClientClosing:
		return "ClientClosing"
	case CloseServerClosing:
		return "ServerClosing"
	case CloseSocketError:
		return "SocketError"
	case CloseProtocolError:
		return "ProtocolError"
	case CloseApplicationError:
		return "ApplicationError"
	case CloseAuthenticationFailure:
		return "AuthenticationFailure"
	case CloseTimeOut:
		return "TimeOut"
	default:
		return "Unspecified"
	}
}
