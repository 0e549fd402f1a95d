/*
Package gcz implements transparent decompression of ".gcz" disc images, the
block-compressed container commonly used for Wii/GameCube disc images in
the wild. Like the sibling wux format for Wii U images, a gcz image is
split into fixed-size blocks; unlike wux, which only deduplicates
bit-identical raw sectors, each unique gcz block is individually
compressed with zlib, trading the dedup table's "store once" saving for a
per-block compression ratio.
*/
package gcz

const (
	// Extension is the conventional file extension used.
	Extension = ".gcz"

	magic0 uint32 = 0x63637a67 // "gzcc" read little-endian, lowest byte first
	magic1 uint32 = 0x1099c0d3

	// rawBlockFlag marks a block offset as pointing at an uncompressed
	// (stored) block rather than a zlib stream, set in the high bit of
	// the stored 64-bit offset.
	rawBlockFlag uint64 = 1 << 63
)

// The on-disk header, read/written with encoding/binary like the padded C
// struct the wux header mirrors.
type header struct {
	Magic            [2]uint32
	BlockSize        uint32
	_                uint32
	UncompressedSize uint64
	NumBlocks        uint32
	_                uint32
}
