package wii

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
)

const fstEntrySize = 12

// fstEntry is one 12-byte entry of the filesystem descriptor table,
// spec.md §3: the top byte of the first word is the type flag (1 =
// directory, 0 = file), the low 24 bits index the string table. field1 is
// either a parent-entry index (directory) or a 34-bit logical byte offset
// (file); sizeOrEnd is either the one-past-last-descendant index
// (directory) or the file's byte size.
type fstEntry struct {
	isDir     bool
	nameOff   uint32
	field1    uint32
	sizeOrEnd uint32
}

// FST is a parsed filesystem descriptor table: the entry array plus the
// NUL-terminated string table that immediately follows it.
type FST struct {
	entries []fstEntry
	names   []byte
}

// ParseFST parses a contiguous FST buffer read from a partition's logical
// stream. Entry 0 is the synthetic root; its sizeOrEnd is the total entry
// count.
func ParseFST(buf []byte) (*FST, error) {
	if len(buf) < fstEntrySize {
		return nil, errors.New("wii: FST buffer too small")
	}

	n := be32(buf[8:fstEntrySize])
	if uint64(n)*fstEntrySize > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: %d entries does not fit in %d bytes", errFSTTooLarge, n, len(buf))
	}

	entries := make([]fstEntry, n)
	for i := range entries {
		e := buf[fstEntrySize*i : fstEntrySize*i+fstEntrySize]
		word0 := be32(e)
		entries[i] = fstEntry{
			isDir:     e[0] == 1,
			nameOff:   word0 & 0x00ffffff,
			field1:    be32(e[4:8]),
			sizeOrEnd: be32(e[8:12]),
		}
	}

	return &FST{entries: entries, names: buf[fstEntrySize*uint64(n):]}, nil
}

// EntryCount returns the total number of entries, including the root.
func (f *FST) EntryCount() int {
	return len(f.entries)
}

func (f *FST) name(i int) (string, error) {
	off := f.entries[i].nameOff
	if int(off) >= len(f.names) {
		return "", fmt.Errorf("wii: FST entry %d name offset out of range", i)
	}
	end := bytes.IndexByte(f.names[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("wii: FST entry %d name is not NUL-terminated", i)
	}
	return string(f.names[off : int(off)+end]), nil
}

// FileHandler receives the directories and files produced by Walk, already
// resolved to host-relative paths. The walker itself performs no
// filesystem I/O and no process working-directory changes; Dir/File are
// the only points at which a caller touches storage, per DESIGN NOTES §9.
type FileHandler interface {
	// Dir is called once per directory entry, before its children.
	Dir(relPath string, isLast bool) error
	// File is called once per file entry with its logical byte range.
	File(relPath string, offset uint64, size uint32, isLast bool) error
	// Leave is called once per directory entry, after all its children
	// (and their subtrees) have been processed. It is the structured
	// counterpart of the original tool's chdir("..") and lets a handler
	// maintain indentation or other per-level state without the walker
	// itself touching process state.
	Leave(relPath string) error
}

// Walk recreates the directory hierarchy described by f, calling h for
// each directory and file in the order they appear in the table. The walk
// halts when the linear index reaches the entry count, per spec.md §4.6.
func (f *FST) Walk(h FileHandler) error {
	n := len(f.entries)
	if n < 2 {
		return nil
	}
	_, err := f.walk(h, 1, n, "")
	return err
}

// walk processes entries starting at j until end is reached, returning the
// index at which it stopped (end, for a well-formed table).
func (f *FST) walk(h FileHandler, j, end int, dir string) (int, error) {
	for j < end {
		e := f.entries[j]
		name, err := f.name(j)
		if err != nil {
			return 0, err
		}
		relPath := filepath.Join(dir, name)

		var next int
		if e.isDir {
			next = int(e.sizeOrEnd)
			if next <= j || next > f.EntryCount() {
				return 0, fmt.Errorf("wii: FST entry %d has invalid end index %d", j, next)
			}
			isLast := next == end
			if err := h.Dir(relPath, isLast); err != nil {
				return 0, err
			}
			if _, err := f.walk(h, j+1, next, relPath); err != nil {
				return 0, err
			}
			if err := h.Leave(relPath); err != nil {
				return 0, err
			}
		} else {
			offset := uint64(e.field1) << 2
			next = j + 1
			isLast := next == end
			if err := h.File(relPath, offset, e.sizeOrEnd, isLast); err != nil {
				return 0, err
			}
		}
		j = next
	}
	return j, nil
}
