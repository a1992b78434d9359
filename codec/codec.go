// Package codec provides pluggable value encoding for RPC call arguments
// and results. Callers may supply their own Codec to rpc.NewPeer or to the
// mailmux/handler adapters; this package supplies binary and JSON reference
// implementations.
package codec

// A Codec converts between Go values and their wire representation for one
// positional field of an RPC call or return. fieldIndex is the zero-based
// position of the value within the call's argument or result list; a Codec
// that does not need per-position behavior can ignore it.
type Codec interface {
	Encode(value any, fieldIndex int) ([]byte, error)
	Decode(data []byte, out any, fieldIndex int) error
}
