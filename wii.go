/*
Package wii implements reading, decryption and verification of Nintendo Wii
optical disc images. A disc image holds a disc header, a partition table,
and a sequence of AES-128-CBC-encrypted partitions; each partition carries a
ticket (a wrapped title key), a title-metadata block, a certificate chain,
a four-level SHA-1 Merkle hash tree, and a body of encrypted clusters that
decode to a filesystem tree.

Example usage:

	import (
	        "io"
	        "os"

	        "github.com/bodgit/wii"
	)

	func main() {
	        f, err := os.Open(os.Args[1])
	        if err != nil {
	                panic(err)
	        }
	        defer f.Close()

	        commonKey, err := os.ReadFile(os.Args[2])
	        if err != nil {
	                panic(err)
	        }

	        fi, err := f.Stat()
	        if err != nil {
	                panic(err)
	        }

	        d, err := wii.NewDisc(io.NewSectionReader(f, 0, fi.Size()), commonKey, wii.DefaultOptions(), nil)
	        if err != nil {
	                panic(err)
	        }

	        if err := d.Extract(os.Args[3]); err != nil {
	                panic(err)
	        }
	}
*/
package wii

import (
	"io"

	"go4.org/readerutil"
)

const (
	// SectorSize is the raw, on-disc size of one cluster.
	SectorSize = 0x8000
	// PayloadSize is the decrypted, verified payload carried by one cluster.
	PayloadSize = 0x7c00
	// KeySize is the AES-128 key and block size used throughout.
	KeySize = 16
	// H3Size is the size of the persisted per-partition H3 table.
	H3Size = 0x18000
	// H3EntrySize is the size of one SHA-1 digest in the H3 table.
	H3EntrySize = sha1Size
	// CommonKeyFile is the conventional filename for the platform common key.
	CommonKeyFile = "common.key"
)

// A Reader has Read, Seek, ReadAt, and Size methods, mirroring the shape of
// an opened disc image regardless of whether it backs onto a raw file, a
// split multi-part image, or a compressed .gcz container.
type Reader interface {
	io.Reader
	io.Seeker
	readerutil.SizeReaderAt
}

// A ReadCloser extends Reader with a Close method.
type ReadCloser interface {
	Reader
	io.Closer
}
