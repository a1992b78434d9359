package mailmux

// Message is an ordered, immutable sequence of frames whose interior frames
// are all [FrameMore] and whose terminal frame is [FrameLast],
// [FrameEmptyLast], or [FrameCommand] (a single-frame control message).  A
// message consisting of one empty frame is represented as a lone
// FrameEmptyLast.
type Message struct {
	Frames []Frame
}

// Size reports the sum of the wire size of every frame in m.
func (m Message) Size() int {
	var n int
	for _, f := range m.Frames {
		n += f.Size()
	}
	return n
}

// Payload concatenates the data of every frame in m. This is the inverse of
// [NewMessage]: for any payload p, NewMessage(p, max).Payload() == p.
func (m Message) Payload() []byte {
	var n int
	for _, f := range m.Frames {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range m.Frames {
		out = append(out, f.Data...)
	}
	return out
}

// NewMessage splits payload into a Message whose frames each carry at most
// maxFrameData bytes. An empty payload yields a single FrameEmptyLast frame.
// A non-empty payload yields zero or more FrameMore frames followed by one
// FrameLast frame.
func NewMessage(payload []byte, maxFrameData int) Message {
	if len(payload) == 0 {
		return Message{Frames: []Frame{{Type: FrameEmptyLast}}}
	}

	var frames []Frame
	for len(payload) > maxFrameData {
		frames = append(frames, Frame{Type: FrameMore, Data: payload[:maxFrameData]})
		payload = payload[maxFrameData:]
	}
	frames = append(frames, Frame{Type: FrameLast, Data: payload})
	return Message{Frames: frames}
}

// NewCommandMessage wraps payload as a single Command frame, for control
// traffic small enough to fit in one frame (a length invariant Message
// itself does not enforce). The rpc package does not use it: its handshake
// and call messages are built with NewMessage.
func NewCommandMessage(payload []byte) Message {
	return Message{Frames: []Frame{{Type: FrameCommand, Data: payload}}}
}

// Encode appends the wire encoding of every frame in m, in order, to buf.
func (m Message) Encode(buf []byte) []byte {
	for _, f := range m.Frames {
		buf = f.Encode(buf)
	}
	return buf
}

// messageAssembler holds a mailbox's in-progress message state.
type messageAssembler struct {
	current []Frame
}

// feed appends f to the in-progress message. If f is terminal, it returns
// the completed Message and resets the in-progress state; otherwise it
// returns ok=false.
func (a *messageAssembler) feed(f Frame) (Message, bool) {
	a.current = append(a.current, f)
	if !f.Type.terminal() {
		return Message{}, false
	}
	msg := Message{Frames: a.current}
	a.current = nil
	return msg, true
}
