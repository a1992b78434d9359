package mailmux

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		f    Frame
	}{
		{"ping", Frame{Type: FramePing}},
		{"empty", Frame{Type: FrameEmpty}},
		{"empty-last", Frame{Type: FrameEmptyLast}},
		{"more", Frame{Type: FrameMore, Data: []byte("hello")}},
		{"last", Frame{Type: FrameLast, Data: []byte("world")}},
		{"command", Frame{Type: FrameCommand, Data: []byte{1, 2, 3}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf := test.f.Encode(nil)
			if len(buf) != test.f.Size() {
				t.Errorf("Encode length = %d, want Size() = %d", len(buf), test.f.Size())
			}
			got, n, err := decodeFrame(buf, 1<<16)
			if err != nil {
				t.Fatalf("decodeFrame: %v", err)
			}
			if n != len(buf) {
				t.Errorf("decodeFrame consumed %d bytes, want %d", n, len(buf))
			}
			if diff := cmp.Diff(test.f, got); diff != "" {
				t.Errorf("decodeFrame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	full := (Frame{Type: FrameLast, Data: []byte("payload")}).Encode(nil)
	for i := 0; i < len(full); i++ {
		f, n, err := decodeFrame(full[:i], 1<<16)
		if err != nil {
			t.Fatalf("decodeFrame(%d bytes): unexpected error: %v", i, err)
		}
		if n != 0 || f.Type != 0 || f.Data != nil {
			t.Errorf("decodeFrame(%d bytes) = %v, %d, want zero value", i, f, n)
		}
	}
}

func TestDecodeFrameInvalid(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"unknown type", []byte{200, 0, 0}},
		{"zero-length more", (Frame{Type: FrameMore}).Encode(nil)},
		{"zero-length last", (Frame{Type: FrameLast}).Encode(nil)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := decodeFrame(test.buf, 1<<16)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("decodeFrame(%v) error = %v, want ErrInvalidFrame", test.buf, err)
			}
		})
	}
}

func TestDecodeFrameOversized(t *testing.T) {
	buf := []byte{byte(FrameMore), 10, 0} // declares 10 bytes, none present
	_, _, err := decodeFrame(buf, 4)
	if !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("decodeFrame oversized: error = %v, want ErrInvalidFrame", err)
	}
}
