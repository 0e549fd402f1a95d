package wii

import "encoding/binary"

// be32 decodes a big-endian uint32 from the start of p. p must have at
// least 4 bytes; a short slice panics, matching the source's fixed-offset
// byte-layout reads which are never bounds-checked.
func be32(p []byte) uint32 {
	return binary.BigEndian.Uint32(p)
}

// be34 decodes a 34-bit big-endian quantity: a 32-bit word whose value is a
// sector address or sector count, left-shifted by two to recover the byte
// address/size it represents.
func be34(p []byte) uint64 {
	return uint64(be32(p)) << 2
}

// be64 decodes a big-endian uint64 from the start of p.
func be64(p []byte) uint64 {
	return binary.BigEndian.Uint64(p)
}
