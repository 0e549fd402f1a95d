/*
Package yaz0 implements decompression of the "Yaz0" container used
throughout Nintendo GameCube/Wii titles for individual filesystem files.
The format is a run-length/back-reference scheme: a one-byte flag
preceding each group of 8 tokens selects, bit by bit from the MSB down,
between a literal byte and a (distance, length) back-reference into the
already-emitted output.
*/
package yaz0

const (
	// Magic is the four-byte signature identifying a Yaz0 stream.
	Magic = "Yaz0"

	headerSize = 0x10
)
