// Copyright (C) 2024 The mailmux Authors. All Rights Reserved.

// Package mailmux implements a TCP-based message-queue transport with an
// overlaid RPC protocol.
//
// # Frames and messages
//
// The wire unit is a [Frame]: a one-byte type tag, an optional length, and a
// payload. A [FrameBuilder] turns a byte stream back into frames. An ordered
// run of frames terminated by a Last or EmptyLast frame is a [Message]; see
// the type documentation for the exact framing rules.
//
// # Mailboxes and the postmaster
//
// Each [Session] owns exactly one [Mailbox], which holds an inbound queue of
// completed messages and an outbound queue of messages awaiting the wire. A
// single shared [Postmaster] multiplexes many mailboxes onto a bounded pool
// of reader and writer goroutines, guaranteeing at most one reader and one
// writer active per mailbox at any instant (single-flight).
//
// To create a client session:
//
//	pm := mailmux.NewPostmaster(mailmux.DefaultConfig())
//	sess, err := mailmux.Dial(ctx, pm, "tcp", "localhost:9000")
//
// To run a server:
//
//	pm := mailmux.NewPostmaster(mailmux.DefaultConfig())
//	lst, err := mailmux.Listen(pm, "tcp", ":9000")
//	sess, err := lst.Accept(ctx)
//
// Register a listener for completed inbound messages with
// [Session.OnIncomingMessage], and send outbound messages with
// [Session.EnqueueOutgoing]. Most callers will not use the bare Session API
// directly, and will instead use the mailmux/rpc package layered on top.
//
// # RPC
//
// The mailmux/rpc package implements request/response and fire-and-forget
// calls, cancellation, remote exceptions, and name-based proxy dispatch on
// top of a Session. See that package's documentation for details.
package mailmux
