package yaz0

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadMagic is returned by Decode and NewReader when the input does not
// begin with the Yaz0 magic.
var ErrBadMagic = errors.New("yaz0: bad magic")

// Decode decompresses a complete Yaz0 stream and returns the decompressed
// bytes. The header's declared size (big-endian uint32 at offset 4)
// determines when decoding stops; back-references are copied byte by byte
// so that overlapping copies (dist < length) reproduce the source's RLE
// semantics exactly.
func Decode(data []byte) ([]byte, error) {
	if len(data) < headerSize || string(data[:4]) != Magic {
		return nil, ErrBadMagic
	}

	size := binary.BigEndian.Uint32(data[4:8])
	out := make([]byte, 0, size)
	in := data[headerSize:]

	var flag byte
	var nbits uint

	readByte := func() (byte, error) {
		if len(in) == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		b := in[0]
		in = in[1:]
		return b, nil
	}

	for uint32(len(out)) < size {
		if nbits == 0 {
			var err error
			if flag, err = readByte(); err != nil {
				return nil, fmt.Errorf("yaz0: reading group flag: %w", err)
			}
			nbits = 8
		}

		if flag&0x80 != 0 {
			b, err := readByte()
			if err != nil {
				return nil, fmt.Errorf("yaz0: reading literal: %w", err)
			}
			out = append(out, b)
		} else {
			n, err := readByte()
			if err != nil {
				return nil, fmt.Errorf("yaz0: reading back-reference: %w", err)
			}
			d, err := readByte()
			if err != nil {
				return nil, fmt.Errorf("yaz0: reading back-reference: %w", err)
			}

			dist := int(uint16(n&0x0f)<<8|uint16(d)) + 1
			nibble := n >> 4

			var length int
			if nibble == 0 {
				e, err := readByte()
				if err != nil {
					return nil, fmt.Errorf("yaz0: reading extended length: %w", err)
				}
				length = int(e) + 0x12
			} else {
				length = int(nibble) + 2
			}

			if dist > len(out) {
				return nil, fmt.Errorf("yaz0: back-reference distance %d exceeds output length %d", dist, len(out))
			}

			start := len(out) - dist
			for i := 0; i < length; i++ {
				out = append(out, out[start+i])
			}
		}

		flag <<= 1
		nbits--
	}

	return out[:size], nil
}

// Reader streams the decompressed bytes of a Yaz0 stream. Internally the
// whole output is materialised up front by Decode (the format's
// back-references can point arbitrarily far back, so there is no way to
// bound the working set below the full decompressed size); Reader exists
// for API symmetry with sibling decoders in this module family.
type Reader struct {
	r io.Reader
}

// NewReader decompresses all of r and returns a Reader over the result.
func NewReader(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	out, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &Reader{r: bytes.NewReader(out)}, nil
}

func (z *Reader) Read(p []byte) (int, error) {
	return z.r.Read(p)
}
