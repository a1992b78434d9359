package mailmux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameBuilderWholeFrames(t *testing.T) {
	var buf []byte
	buf = (Frame{Type: FrameMore, Data: []byte("abc")}).Encode(buf)
	buf = (Frame{Type: FrameLast, Data: []byte("def")}).Encode(buf)

	b := NewFrameBuilder(1 << 16)
	if err := b.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []Frame{
		{Type: FrameMore, Data: []byte("abc")},
		{Type: FrameLast, Data: []byte("def")},
	}
	if diff := cmp.Diff(want, b.Frames()); diff != "" {
		t.Errorf("Frames mismatch (-want +got):\n%s", diff)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", b.Pending())
	}
}

func TestFrameBuilderFragmentedInput(t *testing.T) {
	var buf []byte
	buf = (Frame{Type: FrameMore, Data: []byte("hello world")}).Encode(buf)
	buf = (Frame{Type: FrameLast, Data: []byte("!")}).Encode(buf)

	b := NewFrameBuilder(1 << 16)
	var got []Frame
	for i := 0; i < len(buf); i++ {
		if err := b.Write(buf[i : i+1]); err != nil {
			t.Fatalf("Write byte %d: %v", i, err)
		}
		got = append(got, b.Frames()...)
	}
	want := []Frame{
		{Type: FrameMore, Data: []byte("hello world")},
		{Type: FrameLast, Data: []byte("!")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fragmented Frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameBuilderInvalidFrame(t *testing.T) {
	b := NewFrameBuilder(1 << 16)
	if err := b.Write([]byte{200, 0, 0}); err == nil {
		t.Error("Write of unknown frame type: got nil error, want ErrInvalidFrame")
	}
}

func TestFrameBuilderMaxFrameData(t *testing.T) {
	buf := (Frame{Type: FrameLast, Data: []byte("toolong")}).Encode(nil)
	b := NewFrameBuilder(3)
	if err := b.Write(buf); err == nil {
		t.Error("Write over max frame data: got nil error, want ErrInvalidFrame")
	}
}
