// Package rpc layers request/response and fire-and-forget method calls,
// cancellation, remote exceptions, and a name-based dispatch table on top of
// a mailmux.Session.
package rpc

import "context"

// RpcCallMessageType tags the second byte, after handlerID, of every message
// payload exchanged by a Peer, distinguishing control traffic (handshake,
// calls, returns) that otherwise all rides the same Session.
type RpcCallMessageType byte

// handlerID tags byte 0 of every message a Peer exchanges, ahead of the
// RpcCallMessageType action byte. mailmux defines only one handler, RpcCall;
// the byte is carried on the wire so a future second handler (and a
// mismatched one, on the wire today) has an unambiguous way to be rejected
// rather than silently misparsed as an RpcCall action.
const handlerID byte = 1

// The MethodCall..MethodCancel values are the wire ids fixed by the
// protocol's canonical action enum; ServerInfo, Authenticate, and
// AuthenticationResult are handshake-only tags with no fixed slot and are
// assigned the values left over.
const (
	ServerInfo RpcCallMessageType = 0

	MethodCall         RpcCallMessageType = 1
	MethodCallNoReturn RpcCallMessageType = 2
	MethodReturn       RpcCallMessageType = 3
	MethodException    RpcCallMessageType = 4
	MethodCancel       RpcCallMessageType = 5

	Authenticate         RpcCallMessageType = 6
	AuthenticationResult RpcCallMessageType = 7
)

func (t RpcCallMessageType) String() string {
	switch t {
	case ServerInfo:
		return "ServerInfo"
	case Authenticate:
		return "Authenticate"
	case AuthenticationResult:
		return "AuthenticationResult"
	case MethodCall:
		return "MethodCall"
	case MethodCallNoReturn:
		return "MethodCallNoReturn"
	case MethodReturn:
		return "MethodReturn"
	case MethodException:
		return "MethodException"
	case MethodCancel:
		return "MethodCancel"
	default:
		return "Unknown"
	}
}

// Handler serves one method call. args holds the positional, still-encoded
// call arguments; a Handler built by the mailmux/handler package decodes
// them with a codec.Codec. The returned slice holds the still-encoded
// results for a call that expects a return; it is ignored for
// MethodCallNoReturn.
type Handler func(ctx context.Context, args [][]byte) ([][]byte, error)
