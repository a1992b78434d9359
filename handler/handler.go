// Package handler provides adapters from typed Go functions to the
// [rpc.Handler] signature, so callers do not have to hand-write argument
// decoding and result encoding for every registered method.
package handler

import (
	"context"

	"github.com/ashgrove-labs/mailmux/codec"
	"github.com/ashgrove-labs/mailmux/rpc"
)

// ParamResultError adapts a function f that accepts a parameter of type P
// and returns a result of type R and an error, to an [rpc.Handler] that
// encodes and decodes both with c.
func ParamResultError[P, R any](c codec.Codec, f func(context.Context, P) (R, error)) rpc.Handler {
	return func(ctx context.Context, args [][]byte) ([][]byte, error) {
		var p P
		if err := decodeArg(c, args, &p); err != nil {
			return nil, err
		}
		r, err := f(ctx, p)
		if err != nil {
			return nil, err
		}
		out, err := c.Encode(r, 0)
		if err != nil {
			return nil, err
		}
		return [][]byte{out}, nil
	}
}

// ParamResult adapts a function f that accepts a parameter of type P and
// returns a result of type R without error, to an [rpc.Handler].
func ParamResult[P, R any](c codec.Codec, f func(context.Context, P) R) rpc.Handler {
	return ParamResultError(c, func(ctx context.Context, p P) (R, error) {
		return f(ctx, p), nil
	})
}

// ParamError adapts a function f that accepts a parameter of type P and
// returns only an error, to an [rpc.Handler] suitable for a
// MethodCallNoReturn method (its result, if any, is discarded by the
// caller).
func ParamError[P any](c codec.Codec, f func(context.Context, P) error) rpc.Handler {
	return func(ctx context.Context, args [][]byte) ([][]byte, error) {
		var p P
		if err := decodeArg(c, args, &p); err != nil {
			return nil, err
		}
		return nil, f(ctx, p)
	}
}

// ResultError adapts a function f that accepts no parameters and returns a
// result of type R and an error, to an [rpc.Handler].
func ResultError[R any](c codec.Codec, f func(context.Context) (R, error)) rpc.Handler {
	return func(ctx context.Context, args [][]byte) ([][]byte, error) {
		r, err := f(ctx)
		if err != nil {
			return nil, err
		}
		out, err := c.Encode(r, 0)
		if err != nil {
			return nil, err
		}
		return [][]byte{out}, nil
	}
}

func decodeArg[P any](c codec.Codec, args [][]byte, p *P) error {
	if len(args) == 0 {
		return c.Decode(nil, p, 0)
	}
	return c.Decode(args[0], p, 0)
}
