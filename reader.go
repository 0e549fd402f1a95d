package wii

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go4.org/readerutil"
)

const multipart = "game_part"

var fs = afero.NewOsFs()

type reader struct {
	r   readerutil.SizeReaderAt
	c   []io.Closer
	off int64
}

// OpenReader opens name as a raw (optionally split) Wii disc image. If name
// is the first part of a split image (conventionally "game_part1.iso") the
// remaining numbered parts found alongside it are transparently
// concatenated, mirroring the teacher's OpenReader for split .wud images.
func OpenReader(name string) (ReadCloser, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, multierror.Append(err, f.Close())
	}

	var sr readerutil.SizeReaderAt = io.NewSectionReader(f, 0, info.Size())
	files := []io.Closer{f}

	ext := filepath.Ext(name)
	if filepath.Base(name) == fmt.Sprintf("%s1%s", multipart, ext) {
		mr := []readerutil.SizeReaderAt{sr}
		for i := 2; true; i++ {
			next, err := fs.Open(filepath.Join(filepath.Dir(name), fmt.Sprintf("%s%d%s", multipart, i, ext)))
			if err != nil {
				if os.IsNotExist(err) {
					break
				}
				for _, file := range files {
					err = multierror.Append(err, file.Close())
				}
				return nil, err
			}
			files = append(files, next)

			if info, err = next.Stat(); err != nil {
				for _, file := range files {
					err = multierror.Append(err, file.Close())
				}
				return nil, err
			}

			mr = append(mr, io.NewSectionReader(next, 0, info.Size()))
		}
		sr = readerutil.NewMultiReaderAt(mr...)
	}

	return &reader{r: sr, c: files}, nil
}

func (r *reader) Size() int64 {
	return r.r.Size()
}

func (r *reader) Close() (err error) {
	for _, c := range r.c {
		if cerr := c.Close(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
	}
	return
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
		if n > 0 {
			err = nil
		}
	}
	return
}

func (r *reader) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

func (r *reader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	default:
		return 0, errors.New("wii: invalid whence")
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.off
	case io.SeekEnd:
		offset += r.Size()
	}
	if offset < 0 {
		return 0, errors.New("wii: invalid offset")
	}
	r.off = offset
	return offset, nil
}
