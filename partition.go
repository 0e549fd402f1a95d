package wii

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// Partition descriptor byte offsets within the first 0x2c0 bytes of a
// partition's raw region, per spec.md §6.
const (
	offEncryptedTitleKey = 0x01bf
	offTitleID           = 0x01dc
	offTMDOffset         = 0x02a4
	offTMDSize           = 0x02a8
	offCertSize          = 0x02ac
	offCertOffset        = 0x02b0
	offH3Offset          = 0x02b4
	offDataOffset        = 0x02b8
	offDataSize          = 0x02bc

	partitionHeaderSize = 0x02c0
)

// Partition is one parsed and key-unwrapped partition of a Disc. It owns
// its header, H3 table and title key for its own lifetime; the Disc's raw
// Reader outlives it.
type Partition struct {
	session *Session
	raw     Reader
	rawOff  int64

	TitleID    [8]byte
	titleKey   [KeySize]byte
	TMDOffset  uint64
	TMDSize    uint64
	CertSize   uint64
	CertOffset uint64
	H3Offset   uint64
	DataOffset uint64
	DataSize   uint64

	h3    []byte
	block cipher.Block

	// ValidateChain, if non-nil, is invoked with the raw partition
	// header bytes during OpenPartition. OpenPartition builds the
	// Partition itself and checks this field before returning it, so the
	// field is always nil at that point: no ticket/TMD/certificate-chain
	// validation is performed, and setting the field on a returned
	// Partition has no effect.
	ValidateChain func(header []byte) error
}

// OpenPartition reads and parses the partition at rawOffset within raw,
// unwraps its title key with the session's common key, and loads its H3
// table.
func OpenPartition(session *Session, raw Reader, rawOffset int64) (*Partition, error) {
	p := &Partition{session: session, raw: raw, rawOff: rawOffset}

	header := make([]byte, partitionHeaderSize)
	if err := partitionRawRead(raw, rawOffset, 0, header); err != nil {
		return nil, fmt.Errorf("wii: reading partition header: %w", err)
	}

	var encKey [KeySize]byte
	copy(encKey[:], header[offEncryptedTitleKey:offEncryptedTitleKey+KeySize])

	var titleID [8]byte
	copy(titleID[:], header[offTitleID:offTitleID+8])

	if err := decryptTitleKey(session.CommonKey, &encKey, titleID); err != nil {
		return nil, fmt.Errorf("wii: unwrapping title key: %w", err)
	}
	p.titleKey = encKey
	p.TitleID = titleID

	block, err := aes.NewCipher(p.titleKey[:])
	if err != nil {
		return nil, fmt.Errorf("wii: building title key cipher: %w", err)
	}
	p.block = block

	if p.ValidateChain != nil {
		if err := p.ValidateChain(header); err != nil {
			return nil, fmt.Errorf("wii: validating ticket/TMD/cert chain: %w", err)
		}
	}

	p.TMDOffset = uint64(be32(header[offTMDOffset:]))
	p.TMDSize = be34(header[offTMDSize:])
	p.CertSize = uint64(be32(header[offCertSize:]))
	p.CertOffset = be34(header[offCertOffset:])
	p.H3Offset = be34(header[offH3Offset:])
	p.DataOffset = be34(header[offDataOffset:])
	p.DataSize = be34(header[offDataSize:])

	p.h3 = make([]byte, H3Size)
	if err := partitionRawRead(raw, rawOffset, int64(p.H3Offset), p.h3); err != nil {
		return nil, fmt.Errorf("wii: reading H3 table: %w", err)
	}

	return p, nil
}

// newRawPartition builds a Partition that never decrypts or verifies
// anything: its Stream reads degrade to a raw passthrough, for
// Options.JustAPartition mode where the input is already a decrypted
// partition image with no ticket, H3 table, or cluster framing at all.
func newRawPartition(session *Session, raw Reader, rawOffset int64) *Partition {
	return &Partition{
		session:  session,
		raw:      raw,
		rawOff:   rawOffset,
		DataSize: uint64(raw.Size()) - uint64(rawOffset),
	}
}

// h3Digest returns the b3'th SHA-1 digest of the H3 table.
func (p *Partition) h3Digest(b3 uint64) []byte {
	return p.h3[H3EntrySize*b3 : H3EntrySize*(b3+1)]
}

// clusterCount returns the number of clusters that DataSize spans.
func (p *Partition) clusterCount() uint64 {
	return (p.DataSize + SectorSize - 1) / SectorSize
}

func partitionRawRead(raw Reader, rawOffset, offset int64, data []byte) error {
	if _, err := raw.Seek(rawOffset+offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(raw, data)
	return err
}

var errFSTTooLarge = errors.New("wii: FST size implausibly large")
