package mailmux

import (
	"encoding/binary"
	"fmt"
)

// FrameType identifies the structural role of a Frame within a Message. See
// the package documentation and [Message] for the framing rules.
type FrameType byte

const (
	// FramePing carries no payload and updates the session's last-received
	// time without ever appearing in a Message.
	FramePing FrameType = 0

	// FrameEmpty is an interior frame with no payload. Rare in practice
	// (More frames normally carry data) but valid.
	FrameEmpty FrameType = 1

	// FrameEmptyLast terminates a message consisting of a single empty
	// frame, or an otherwise-empty final segment.
	FrameEmptyLast FrameType = 2

	// FrameMore is an interior frame carrying a non-empty payload.
	FrameMore FrameType = 3

	// FrameLast terminates a message with a non-empty final payload.
	FrameLast FrameType = 4

	// FrameCommand carries an out-of-band control payload as the sole frame
	// of its message (see NewCommandMessage).
	FrameCommand FrameType = 5
)

func (t FrameType) String() string {
	switch t {
	case FramePing:
		return "Ping"
	case FrameEmpty:
		return "Empty"
	case FrameEmptyLast:
		return "EmptyLast"
	case FrameMore:
		return "More"
	case FrameLast:
		return "Last"
	case FrameCommand:
		return "Command"
	default:
		return fmt.Sprintf("FrameType(%d)", byte(t))
	}
}

// hasLength reports whether the wire encoding of t carries an explicit
// length field. Ping, Empty, and EmptyLast frames never carry a payload and
// so have a 1-byte header; all other types have a 3-byte header.
func (t FrameType) hasLength() bool {
	switch t {
	case FramePing, FrameEmpty, FrameEmptyLast:
		return false
	default:
		return true
	}
}

func (t FrameType) valid() bool {
	switch t {
	case FramePing, FrameEmpty, FrameEmptyLast, FrameMore, FrameLast, FrameCommand:
		return true
	default:
		return false
	}
}

// terminal reports whether t can end a Message.
func (t FrameType) terminal() bool {
	return t == FrameLast || t == FrameEmptyLast || t == FrameCommand
}

// Frame is the smallest typed unit exchanged on the wire. See the package
// documentation for the byte layout.
type Frame struct {
	Type FrameType
	Data []byte
}

// Size reports the number of bytes Frame occupies on the wire, including its
// header.
func (f Frame) Size() int {
	if f.Type.hasLength() {
		return 3 + len(f.Data)
	}
	return 1
}

// Encode appends the wire encoding of f to buf and returns the result.
func (f Frame) Encode(buf []byte) []byte {
	buf = append(buf, byte(f.Type))
	if !f.Type.hasLength() {
		return buf
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(f.Data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, f.Data...)
}

// decodeFrame parses a single frame from the head of buf, reporting the
// number of bytes consumed. It returns (Frame{}, 0, nil) when buf does not
// yet hold a complete frame — the caller should wait for more bytes.  It
// returns a non-nil error, wrapping ErrInvalidFrame, on any wire violation.
func decodeFrame(buf []byte, maxFrameData int) (Frame, int, error) {
	if len(buf) < 1 {
		return Frame{}, 0, nil
	}
	t := FrameType(buf[0])
	if !t.valid() {
		return Frame{}, 0, fmt.Errorf("%w: unknown frame type %d", ErrInvalidFrame, buf[0])
	}
	if !t.hasLength() {
		return Frame{Type: t}, 1, nil
	}
	if len(buf) < 3 {
		return Frame{}, 0, nil
	}
	dataLen := int(binary.LittleEndian.Uint16(buf[1:3]))
	if dataLen > maxFrameData {
		return Frame{}, 0, fmt.Errorf("%w: data length %d exceeds max %d", ErrInvalidFrame, dataLen, maxFrameData)
	}
	if dataLen == 0 && (t == FrameMore || t == FrameLast) {
		return Frame{}, 0, fmt.Errorf("%w: zero-length %v frame (use Empty/EmptyLast)", ErrInvalidFrame, t)
	}
	need := 3 + dataLen
	if len(buf) < need {
		return Frame{}, 0, nil
	}
	data := make([]byte, dataLen)
	copy(data, buf[3:need])
	return Frame{Type: t, Data: data}, need, nil
}
