package wii

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"github.com/bodgit/wii/yaz0"
)

const (
	streamChunkSize = 0x80000

	magicYaz0 = "Yaz0"
	magicRARC = "RARC"
)

// Emitter implements FileHandler: it writes the directory tree and file
// contents described by an FST to hostFS under root, streaming large files
// straight from the partition Stream and otherwise reading a file fully
// into memory to sniff its magic and, if requested, transparently
// decompress Yaz0 (spec.md §4.7).
type Emitter struct {
	session *Session
	stream  *Stream
	hostFS  afero.Fs
	root    string

	indent string
	bar    *progressbar.ProgressBar
}

// NewEmitter returns an Emitter that writes under root (created if
// necessary) using session's options and logger, reading file contents
// from stream. entryCount sizes the progress bar; pass 0 to disable it.
func NewEmitter(session *Session, stream *Stream, root string, entryCount int) (*Emitter, error) {
	if err := fs.MkdirAll(root, os.ModePerm|os.ModeDir); err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if entryCount > 0 {
		bar = progressbar.Default(int64(entryCount), "extracting")
	}

	return &Emitter{
		session: session,
		stream:  stream,
		hostFS:  fs,
		root:    root,
		bar:     bar,
	}, nil
}

func (e *Emitter) advance(name string, isLast bool, isDir bool) {
	marker := "|"
	if isLast {
		marker = "+"
	}
	kind := ""
	if isDir {
		kind = "/"
	}
	e.session.Logger.Infof("%s%s-- %s%s", e.indent, marker, name, kind)
	if e.bar != nil {
		_ = e.bar.Add(1)
	}
}

// Dir creates relPath under root and pushes one indentation level onto the
// diagnostic tree renderer.
func (e *Emitter) Dir(relPath string, isLast bool) error {
	e.advance(filepath.Base(relPath), isLast, true)

	if err := e.hostFS.MkdirAll(filepath.Join(e.root, relPath), os.ModePerm|os.ModeDir); err != nil {
		return fmt.Errorf("wii: creating directory %q: %w", relPath, err)
	}

	if isLast {
		e.indent += "    "
	} else {
		e.indent += "|   "
	}
	return nil
}

// Leave pops the indentation level pushed by the matching Dir call.
func (e *Emitter) Leave(relPath string) error {
	if len(e.indent) >= 4 {
		e.indent = e.indent[:len(e.indent)-4]
	}
	return nil
}

// File writes relPath's contents, streaming for files larger than
// MaxSizeToAutoAnalyse and otherwise buffering in memory to sniff for a
// Yaz0 or RARC magic.
func (e *Emitter) File(relPath string, offset uint64, size uint32, isLast bool) error {
	e.advance(filepath.Base(relPath), isLast, false)

	target := filepath.Join(e.root, relPath)

	if uint64(size) > e.session.Options.MaxSizeToAutoAnalyse {
		return e.streamFile(target, offset, size)
	}
	return e.bufferedFile(target, offset, size)
}

func (e *Emitter) streamFile(target string, offset uint64, size uint32) error {
	return copyStreamRange(e.hostFS, e.stream, target, int64(offset), int64(size))
}

// copyStreamRange copies size bytes starting at logical offset off from
// stream to a newly created file at target on hostFS, in streamChunkSize
// chunks. Used both for large FST files and for the verbatim APL/DOL
// blobs copied ahead of the FST walk.
func copyStreamRange(hostFS afero.Fs, stream *Stream, target string, off, size int64) error {
	w, err := hostFS.Create(target)
	if err != nil {
		return fmt.Errorf("wii: creating %q: %w", target, err)
	}
	defer w.Close()

	sr := io.NewSectionReader(stream, off, size)
	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(w, sr, buf); err != nil {
		return fmt.Errorf("wii: copying %q: %w", target, err)
	}
	return nil
}

func (e *Emitter) bufferedFile(target string, offset uint64, size uint32) error {
	data, err := e.stream.ReadRange(int64(offset), int64(size))
	if err != nil {
		return fmt.Errorf("wii: reading %q: %w", target, err)
	}

	if e.session.Options.UncompressYaz0 && len(data) >= 8 && bytes.Equal(data[:4], []byte(magicYaz0)) {
		e.session.Logger.Infow("Yaz0 payload detected", "path", target)
		if data, err = yaz0.Decode(data); err != nil {
			return fmt.Errorf("wii: decompressing %q: %w", target, err)
		}
	} else if e.session.Options.UnpackRARC && len(data) >= 8 && bytes.Equal(data[:4], []byte(magicRARC)) {
		e.session.Logger.Infow("RARC archive detected, written verbatim", "path", target)
	}

	w, err := e.hostFS.Create(target)
	if err != nil {
		return fmt.Errorf("wii: creating %q: %w", target, err)
	}
	defer w.Close()

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wii: writing %q: %w", target, err)
	}
	return nil
}

// Finish closes out the progress bar, if any.
func (e *Emitter) Finish() {
	if e.bar != nil {
		_ = e.bar.Finish()
	}
}
