package packet_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ashgrove-labs/mailmux/packet"
)

func TestVint30(t *testing.T) {
	tests := []struct {
		input packet.Vint30
		want  string
	}{
		{0, "\x00"},
		{1, "\x04"},
		{63, "\xfc"},

		{64, "\x01\x01"},
		{100, "\x91\x01"},
		{500, "\xd1\x07"},
		{16383, "\xfd\xff"},

		{16384, "\x02\x00\x01"},
		{65000, "\xa2\xf7\x03"},
		{1048576, "\x02\x00\x40"},

		{62830181, "\x97\xd9\xfa\x0e"},
		{536896023, "\x5f\x88\x01\x80"},
		{1073741823, "\xff\xff\xff\xff"},
	}

	var packed []byte
	for _, test := range tests {
		got := test.input.Append(nil)
		if string(got) != test.want {
			t.Errorf("Append(%d) = %v, want %v", test.input, got, []byte(test.want))
		}
		packed = test.input.Append(packed)

		s := packet.NewScanner(got)
		v, err := s.Vint30()
		if err != nil {
			t.Errorf("Vint30(%v): unexpected error: %v", got, err)
		} else if packet.Vint30(v) != test.input {
			t.Errorf("Vint30(%v) = %v, want %v", got, v, test.input)
		}
	}

	s := packet.NewScanner(packed)
	for i := 0; s.Len() != 0; i++ {
		got, err := s.Vint30()
		if err != nil {
			t.Fatalf("Vint30 at offset %d: %v (%v)", s.Offset(), err, s.Rest())
		}
		if i >= len(tests) {
			t.Fatalf("index %d: unexpected extra value %d", i, got)
		}
		if packet.Vint30(got) != tests[i].input {
			t.Errorf("index %d: got %v, want %v", i, got, tests[i].input)
		}
	}
}

func TestVint30OutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Append(MaxVint30+1): expected a panic, got none")
		}
	}()
	packet.Vint30(packet.MaxVint30 + 1).Append(nil)
}

func TestBuilderAndScanner(t *testing.T) {
	var b packet.Builder
	b.Bool(true)
	b.Put(5, 9, 100)
	b.Uint16(5000)
	b.Uint32(0xfc009a01)
	b.Vint30(999)
	b.VPutString("apple")
	b.VPut([]byte("pear"))
	b.PutString("xyzzy")

	const want = "\x01\x05\x09\x64\x13\x88\xfc\x00\x9a\x01\x9d\x0f\x14apple\x10pearxyzzy"

	if n := b.Len(); n != len(want) {
		t.Errorf("Len() = %d, want %d", n, len(want))
	}
	if string(b.Bytes()) != want {
		t.Errorf("Bytes() = %q, want %q", b.Bytes(), want)
	}

	s := packet.NewScanner(b.Bytes())
	checkResult(t, "Bool", s.Bool, true)
	checkResult(t, "Byte 1", s.Byte, 5)
	checkResult(t, "Byte 2", s.Byte, 9)
	checkResult(t, "Byte 3", s.Byte, 100)
	checkResult(t, "Uint16", s.Uint16, 5000)
	checkResult(t, "Uint32", s.Uint32, 0xfc009a01)
	checkResult(t, "Vint30", s.Vint30, 999)
	checkResult(t, "VString", func() (string, error) { return packet.VGet[string](s) }, "apple")
	checkResult(t, "VBytes", func() ([]byte, error) { return packet.VGet[[]byte](s) }, []byte("pear"))
	checkResult(t, "Literal", func() (string, error) { return packet.Get[string](s, 5) }, "xyzzy")

	if s.Len() != 0 {
		t.Errorf("extra data at EOF (%d bytes): %q", s.Len(), s.Rest())
	}
}

func TestScannerTruncated(t *testing.T) {
	s := packet.NewScanner([]byte{1, 2})
	if _, err := s.Uint32(); err == nil {
		t.Error("Uint32 on a 2-byte input: got nil error")
	}
}

func checkResult[T any](t *testing.T, label string, f func() (T, error), want T) {
	t.Helper()
	got, err := f()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", label, err)
		return
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", label, diff)
	}
}
