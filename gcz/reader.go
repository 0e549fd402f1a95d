package gcz

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/spf13/afero"

	"github.com/bodgit/wii"
)

var fs = afero.NewOsFs()

// ErrBadMagic is returned when the input does not begin with the gcz magic.
var ErrBadMagic = errors.New("gcz: bad magic")

const headerSize = 4 + 4 + 4 + 4 + 8 + 4 + 4

// Reader implements wii.Reader over a gcz-compressed image, decompressing
// blocks on demand and caching the most recently decompressed one since
// Stream's cluster-sized ReadAt calls tend to land repeatedly within the
// same block.
type Reader struct {
	r    io.ReaderAt
	hdr  header
	offs []uint64
	size int64

	off int64

	cachedBlock  int
	cachedData   []byte
	haveCachedAt bool
}

// NewReader parses the header and block-offset table of r, which must hold
// size bytes of a gcz image, and returns a Reader exposing the decompressed
// image as a flat, seekable address space.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("gcz: reading header: %w", err)
	}

	var hdr header
	hdr.Magic[0] = binary.LittleEndian.Uint32(buf[0:4])
	hdr.Magic[1] = binary.LittleEndian.Uint32(buf[4:8])
	if hdr.Magic[0] != magic0 || hdr.Magic[1] != magic1 {
		return nil, ErrBadMagic
	}
	hdr.BlockSize = binary.LittleEndian.Uint32(buf[8:12])
	hdr.UncompressedSize = binary.LittleEndian.Uint64(buf[16:24])
	hdr.NumBlocks = binary.LittleEndian.Uint32(buf[24:28])

	if hdr.BlockSize == 0 {
		return nil, fmt.Errorf("gcz: zero block size")
	}
	if want := int64(headerSize) + 8*int64(hdr.NumBlocks); size < want {
		return nil, fmt.Errorf("gcz: image is %d bytes, too small to hold a %d-entry block table", size, hdr.NumBlocks)
	}

	table := make([]byte, 8*uint64(hdr.NumBlocks))
	if _, err := r.ReadAt(table, headerSize); err != nil {
		return nil, fmt.Errorf("gcz: reading block offset table: %w", err)
	}

	offs := make([]uint64, hdr.NumBlocks)
	for i := range offs {
		offs[i] = binary.LittleEndian.Uint64(table[8*i:])
	}

	return &Reader{r: r, hdr: hdr, offs: offs, size: size, cachedBlock: -1}, nil
}

// Size returns the decompressed image size.
func (z *Reader) Size() int64 {
	return int64(z.hdr.UncompressedSize)
}

func (z *Reader) block(i int) ([]byte, error) {
	if z.haveCachedAt && z.cachedBlock == i {
		return z.cachedData, nil
	}

	raw := z.offs[i]
	start := raw &^ rawBlockFlag
	stored := raw&rawBlockFlag != 0

	var end uint64
	if i+1 < len(z.offs) {
		end = z.offs[i+1] &^ rawBlockFlag
	} else {
		end = uint64(z.size)
	}

	compressed := make([]byte, end-start)
	if _, err := z.r.ReadAt(compressed, int64(start)); err != nil {
		return nil, fmt.Errorf("gcz: reading block %d: %w", i, err)
	}

	var data []byte
	if stored {
		data = compressed
	} else {
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gcz: opening block %d: %w", i, err)
		}
		data, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("gcz: decompressing block %d: %w", i, err)
		}
	}

	want := int(z.hdr.BlockSize)
	if i == len(z.offs)-1 {
		if rem := int(z.hdr.UncompressedSize % uint64(z.hdr.BlockSize)); rem != 0 {
			want = rem
		}
	}
	if len(data) != want {
		return nil, fmt.Errorf("gcz: block %d decompressed to %d bytes, want %d", i, len(data), want)
	}

	z.cachedBlock = i
	z.cachedData = data
	z.haveCachedAt = true
	return data, nil
}

// ReadAt implements io.ReaderAt over the decompressed address space.
func (z *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= z.Size() {
		return 0, io.EOF
	}

	n := 0
	bs := int64(z.hdr.BlockSize)
	for n < len(p) {
		cur := off + int64(n)
		if cur >= z.Size() {
			break
		}
		idx := int(cur / bs)
		data, err := z.block(idx)
		if err != nil {
			return n, err
		}
		within := int(cur % bs)
		c := copy(p[n:], data[within:])
		n += c
	}

	var err error
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (z *Reader) Read(p []byte) (int, error) {
	n, err := z.ReadAt(p, z.off)
	z.off += int64(n)
	return n, err
}

func (z *Reader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	default:
		return 0, errors.New("gcz: invalid whence")
	case io.SeekStart:
	case io.SeekCurrent:
		offset += z.off
	case io.SeekEnd:
		offset += z.Size()
	}
	if offset < 0 {
		return 0, errors.New("gcz: invalid offset")
	}
	z.off = offset
	return offset, nil
}

var _ wii.Reader = (*Reader)(nil)

// readCloser pairs a Reader with the underlying host file so OpenReader can
// satisfy wii.ReadCloser.
type readCloser struct {
	*Reader
	f afero.File
}

func (rc *readCloser) Close() error {
	return rc.f.Close()
}

// OpenReader opens name, a .gcz-compressed disc image, for reading. The
// returned wii.ReadCloser exposes the decompressed image as a flat address
// space, so the rest of this module's Disc/Partition/Stream machinery reads
// through it exactly as it would a raw image returned by wii.OpenReader.
func OpenReader(name string) (wii.ReadCloser, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r, err := NewReader(io.NewSectionReader(f, 0, info.Size()), info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &readCloser{Reader: r, f: f}, nil
}
