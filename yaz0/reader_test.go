package yaz0

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// buildStream assembles a minimal Yaz0 stream: the 16-byte header followed
// by one group-flag byte and its encoded tokens.
func buildStream(size uint32, tokens ...byte) []byte {
	header := make([]byte, headerSize)
	copy(header[:4], Magic)
	binary.BigEndian.PutUint32(header[4:8], size)
	return append(header, tokens...)
}

func TestDecodeLiteralsOnly(t *testing.T) {
	// flag 0xe0 = 111xxxxx: three literal ops, "abc".
	data := buildStream(3, 0xe0, 'a', 'b', 'c')

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("Decode() = %q, want %q", got, "abc")
	}
}

// TestDecodeOverlappingBackReference exercises a back-reference whose
// distance (2) is shorter than its length (6), requiring a byte-by-byte
// copy to reproduce the repeating pattern rather than a block copy.
func TestDecodeOverlappingBackReference(t *testing.T) {
	// flag 0xc0 = 11000000: literal 'A', literal 'B', then a back-reference
	// with nibble=4 (length 6), dist-1 encoded as 0x001 (dist 2).
	data := buildStream(8, 0xc0, 'A', 'B', 0x40, 0x01)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte("ABABABAB")
	if !bytes.Equal(got, want) {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecodeExtendedLength(t *testing.T) {
	// flag 0x80 = 10000000: literal 'x', then a back-reference with
	// dist-1 = 0 (dist 1) and nibble 0, signalling an extended length
	// byte; length = extByte + 0x12 = 19, giving 1 + 19 = 20 'x's total,
	// via an overlapping copy of distance 1.
	extByte := byte(19 - 0x12)
	data := buildStream(20, 0x80, 'x', 0x00, 0x00, extByte)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := bytes.Repeat([]byte("x"), 20)
	if !bytes.Equal(got, want) {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte("not a yaz0 stream at all"))
	if err != ErrBadMagic {
		t.Errorf("Decode() error = %v, want %v", err, ErrBadMagic)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	data := buildStream(3, 0xe0, 'x', 'y', 'z')

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, []byte("xyz")) {
		t.Errorf("ReadAll() = %q, want %q", got, "xyz")
	}
}
