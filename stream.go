package wii

import (
	"fmt"
	"io"
)

// Stream is a random-access view over a partition's flat, decrypted and
// verified logical address space (spec.md §4.5). Reads are translated to
// whole-cluster reads at PayloadSize granularity through the owning
// Partition's cluster engine. When the owning Session has
// Options.JustAPartition set, Stream instead reads straight from the
// underlying raw image at the same logical offset, bypassing decryption
// and verification entirely.
type Stream struct {
	partition *Partition
	off       int64
}

// NewStream returns a Stream over p's logical address space.
func NewStream(p *Partition) *Stream {
	return &Stream{partition: p}
}

func (s *Stream) justAPartition() bool {
	return s.partition.session.Options.JustAPartition
}

// ReadAt implements io.ReaderAt.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if s.justAPartition() {
		return s.partition.raw.ReadAt(p, s.partition.rawOff+off)
	}

	total := 0
	for len(p) > 0 {
		c := uint64(off) / PayloadSize
		inBlock := int(uint64(off) % PayloadSize)

		cl, err := s.partition.readCluster(c)
		if err != nil {
			return total, fmt.Errorf("wii: stream read at %d: %w", off, err)
		}

		n := copy(p, cl.Payload()[inBlock:])
		p = p[n:]
		off += int64(n)
		total += n
	}
	return total, nil
}

// Read implements io.Reader, advancing the Stream's internal offset.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.ReadAt(p, s.off)
	s.off += int64(n)
	return n, err
}

// Seek implements io.Seeker.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	default:
		return 0, fmt.Errorf("wii: stream: invalid whence %d", whence)
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.off
	case io.SeekEnd:
		offset += int64(s.partition.DataSize)
	}
	if offset < 0 {
		return 0, fmt.Errorf("wii: stream: invalid offset %d", offset)
	}
	s.off = offset
	return offset, nil
}

// ReadRange reads exactly size bytes starting at logical offset off,
// allocating and returning a new slice. It is a convenience wrapper used by
// the FST walker and disc driver for one-shot reads (header sniffing,
// small-file extraction).
func (s *Stream) ReadRange(off int64, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(s, off, size), buf); err != nil {
		return nil, err
	}
	return buf, nil
}
