package mailmux

import "sync/atomic"

// Mailbox holds the inbound and outbound state for one Session: the raw
// bytes awaiting parsing, the in-progress message, completed inbound
// messages, and outgoing messages awaiting the wire. Mailbox itself enforces
// no concurrency invariants; it assumes it is only ever touched by one
// reader and one writer at a time, a guarantee the Postmaster's
// single-flight discipline provides.
type Mailbox struct {
	maxFrameData int
	sess         *Session // non-owning back-reference

	inboxBytes fifo[[]byte]
	builder    *FrameBuilder
	assembler  messageAssembler
	inbox      fifo[Message]
	outbox     fifo[Message]

	inboxByteCount atomic.Int64
	pingRequested  atomic.Bool
}

// NewMailbox constructs a Mailbox for sess with the given maximum frame
// payload size.
func NewMailbox(sess *Session, maxFrameData int) *Mailbox {
	return &Mailbox{
		maxFrameData: maxFrameData,
		sess:         sess,
		builder:      NewFrameBuilder(maxFrameData),
	}
}

// EnqueueOutgoing appends msg to the outbox and signals the postmaster that
// this mailbox has write work pending.
func (mb *Mailbox) EnqueueOutgoing(msg Message) {
	mb.outbox.push(msg)
	if mb.sess != nil && mb.sess.postmaster != nil {
		mb.sess.postmaster.signalWrite(mb)
	}
}

// EnqueueIncomingBuffer appends a raw byte chunk received from the socket to
// inboxBytes, updates the back-pressure counter, and signals the postmaster
// that this mailbox has read work pending.
func (mb *Mailbox) EnqueueIncomingBuffer(chunk []byte) {
	mb.inboxBytes.push(chunk)
	mb.inboxByteCount.Add(int64(len(chunk)))
	if mb.sess != nil && mb.sess.postmaster != nil {
		mb.sess.postmaster.signalRead(mb)
	}
}

// InboxByteCount reports the number of bytes currently held in inboxBytes
// plus the scratch buffer of the in-progress FrameBuilder. Callers use this
// to apply read back-pressure before it grows unbounded.
func (mb *Mailbox) InboxByteCount() int64 {
	return mb.inboxByteCount.Load() + int64(mb.builder.Pending())
}

// HasPendingOutbox reports whether the outbox holds unsent messages or a
// ping frame is waiting to go out. The postmaster uses this after releasing
// single-flight to close the release/recheck lost-wakeup window: work
// enqueued between the last drain and the release must still trigger a
// fresh signal.
func (mb *Mailbox) HasPendingOutbox() bool {
	return mb.outbox.len() > 0 || mb.pingRequested.Load()
}

// RequestPing arranges for a Ping frame to be written on the next write
// pass and signals the postmaster. Routing pings through the same
// single-flight writer as ordinary messages, rather than writing directly
// to the socket, keeps the gather buffer's byte stream ordered.
func (mb *Mailbox) RequestPing() {
	mb.pingRequested.Store(true)
	if mb.sess != nil && mb.sess.postmaster != nil {
		mb.sess.postmaster.signalWrite(mb)
	}
}

// HasPendingInboxBytes reports whether inboxBytes holds unparsed chunks.
func (mb *Mailbox) HasPendingInboxBytes() bool { return mb.inboxBytes.len() > 0 }

// Inbox drains and returns every message completed so far, in wire order.
func (mb *Mailbox) Inbox() []Message { return mb.inbox.drain() }

// ProcessOutbox is invoked by a writer worker holding single-flight on mb.
// It drains the outbox greedily into gather-batched writes, flushing to
// transmit whenever the next frame would push the buffered payload over
// maxFrameData. It returns the first error transmit reports.
func (mb *Mailbox) ProcessOutbox(transmit func([]byte) error) error {
	messages := mb.outbox.drain()
	ping := mb.pingRequested.CompareAndSwap(true, false)
	if messages == nil && !ping {
		return nil
	}

	var gather []byte
	flush := func() error {
		if len(gather) == 0 {
			return nil
		}
		out := make([]byte, 0, 3+len(gather))
		out = append(out, 0x00, byte(len(gather)), byte(len(gather)>>8))
		out = append(out, gather...)
		gather = gather[:0]
		return transmit(out)
	}

	if ping {
		gather = (Frame{Type: FramePing}).Encode(gather)
		rootMetrics.framesWritten.Add(1)
	}

	for _, msg := range messages {
		for _, f := range msg.Frames {
			if sz := f.Size(); len(gather) > 0 && len(gather)+sz > mb.maxFrameData {
				if err := flush(); err != nil {
					return err
				}
			}
			gather = f.Encode(gather)
			rootMetrics.framesWritten.Add(1)
		}
	}
	return flush()
}

// ProcessInbox is invoked by a reader worker holding single-flight on mb. It
// drains inboxBytes, feeds the FrameBuilder, assembles completed messages,
// and fires IncomingMessage on the owning session at most once for the
// pass, coalescing however many messages completed during it. Ping frames
// are consumed here and never reach a Message. Any error wraps
// ErrInvalidFrame and the caller must close the session with
// CloseProtocolError.
func (mb *Mailbox) ProcessInbox() error {
	chunks := mb.inboxBytes.drain()
	if chunks == nil {
		return nil
	}

	// A pass that reached here read at least one inbound byte, application
	// traffic or otherwise, so it counts as liveness for the idle monitor.
	if mb.sess != nil {
		mb.sess.touchLastReceived()
	}

	for _, chunk := range chunks {
		mb.inboxByteCount.Add(-int64(len(chunk)))
		rootMetrics.bytesGathered.Add(int64(len(chunk)))
		if err := mb.builder.Write(chunk); err != nil {
			return err
		}
	}

	completed := false
	for _, f := range mb.builder.Frames() {
		rootMetrics.framesRead.Add(1)
		if f.Type == FramePing {
			continue
		}
		if msg, ok := mb.assembler.feed(f); ok {
			mb.inbox.push(msg)
			completed = true
		}
	}
	if completed && mb.sess != nil {
		mb.sess.fireIncomingMessage()
	}
	return nil
}
