package wii

import (
	"bytes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/connesc/cipherio"
)

// Byte ranges within one 0x8000-byte on-disc cluster, per spec.md §3.
const (
	clusterH0Off   = 0x000
	clusterH0Len   = 0x280
	clusterH1Off   = 0x280
	clusterH1Len   = 0x0c0
	clusterH2Off   = 0x340
	clusterH2Len   = 0x0c0
	clusterIVOff   = 0x3d0
	clusterIVLen   = KeySize
	clusterDataOff = 0x400

	h0Count   = 31
	h0SpanLen = h0Count * sha1Size // 620
	h1SpanLen = 8 * sha1Size       // 160
	h2SpanLen = 8 * sha1Size       // 160
)

// Cluster is one decrypted, hash-verified 0x7c00-byte payload plus the
// per-level verification outcome recorded while producing it.
type Cluster struct {
	payload []byte

	matchH0 [h0Count]bool
	matchH1 bool
	matchH2 bool
	matchH3 bool
}

// Payload returns the verified 0x7c00-byte cluster payload.
func (c *Cluster) Payload() []byte {
	return c.payload
}

// readCluster reads, decrypts and Merkle-verifies cluster c of the
// partition, per spec.md §4.4:
//
//  1. locate the 0x8000-byte cluster in the raw image,
//  2. read the payload IV from the still-encrypted bytes at 0x3d0,
//  3. read and decrypt the payload with that IV,
//  4. read and decrypt the hash region with an all-zero IV,
//  5. verify H0..H3 against the decrypted hash region and the partition's
//     persisted H3 table, recording (never aborting on) any mismatch.
func (p *Partition) readCluster(c uint64) (*Cluster, error) {
	clusterRawOff := p.rawOff + int64(p.DataOffset) + SectorSize*int64(c)

	// Step 2: the IV lives in the still-encrypted bytes and is taken by
	// its own raw read. The decryption steps below read the payload and
	// hash region from the image again into fresh buffers and never
	// modify the on-disc bytes, so the IV is always the ciphertext.
	var iv [clusterIVLen]byte
	if err := partitionRawRead(p.raw, clusterRawOff, clusterIVOff, iv[:]); err != nil {
		return nil, fmt.Errorf("wii: reading cluster %d IV: %w", c, err)
	}

	// Step 3: decrypt the payload, streaming straight off the disc
	// through a CBC-decrypting reader, the same "decrypting reader over
	// a byte range" idiom the teacher uses for whole files.
	payload := make([]byte, PayloadSize)
	payloadSR := io.NewSectionReader(p.raw, clusterRawOff+clusterDataOff, PayloadSize)
	payloadCBC := cipherio.NewBlockReader(payloadSR, cipher.NewCBCDecrypter(p.block, iv[:]))
	if _, err := io.ReadFull(payloadCBC, payload); err != nil {
		return nil, fmt.Errorf("wii: decrypting cluster %d payload: %w", c, err)
	}

	// Step 4: decrypt the hash region with an all-zero IV.
	hashRegion := make([]byte, clusterDataOff)
	var zeroIV [KeySize]byte
	hashSR := io.NewSectionReader(p.raw, clusterRawOff, clusterDataOff)
	hashCBC := cipherio.NewBlockReader(hashSR, cipher.NewCBCDecrypter(p.block, zeroIV[:]))
	if _, err := io.ReadFull(hashCBC, hashRegion); err != nil {
		return nil, fmt.Errorf("wii: decrypting cluster %d hash region: %w", c, err)
	}

	h0 := hashRegion[clusterH0Off : clusterH0Off+clusterH0Len]
	h1 := hashRegion[clusterH1Off : clusterH1Off+clusterH1Len]
	h2 := hashRegion[clusterH2Off : clusterH2Off+clusterH2Len]

	b1 := c & 7
	b2 := (c >> 3) & 7
	b3 := c >> 6

	cl := &Cluster{payload: payload}

	for i := 0; i < h0Count; i++ {
		sum := sha1Sum(payload[0x400*i : 0x400*(i+1)])
		want := h0[sha1Size*i : sha1Size*(i+1)]
		cl.matchH0[i] = bytes.Equal(sum[:], want)
		if !cl.matchH0[i] {
			p.session.markError(ErrH0, "H0 mismatch", "cluster", c, "block", i)
		}
	}

	sumH1 := sha1Sum(h0[:h0SpanLen])
	wantH1 := h1[sha1Size*b1 : sha1Size*(b1+1)]
	cl.matchH1 = bytes.Equal(sumH1[:], wantH1)
	if !cl.matchH1 {
		p.session.markError(ErrH1, "H1 mismatch", "cluster", c)
	}

	sumH2 := sha1Sum(h1[:h1SpanLen])
	wantH2 := h2[sha1Size*b2 : sha1Size*(b2+1)]
	cl.matchH2 = bytes.Equal(sumH2[:], wantH2)
	if !cl.matchH2 {
		p.session.markError(ErrH2, "H2 mismatch", "cluster", c)
	}

	sumH3 := sha1Sum(h2[:h2SpanLen])
	wantH3 := p.h3Digest(b3)
	cl.matchH3 = bytes.Equal(sumH3[:], wantH3)
	if !cl.matchH3 {
		p.session.markError(ErrH3, "H3 mismatch", "cluster", c)
	}

	return cl, nil
}
