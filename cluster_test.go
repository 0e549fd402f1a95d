package wii

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"testing"

	"go.uber.org/zap"
)

// memReader adapts a byte slice to the Reader interface for tests.
type memReader struct {
	*bytes.Reader
}

func (m memReader) Size() int64 { return m.Reader.Size() }

func newMemReader(b []byte) Reader {
	return memReader{bytes.NewReader(b)}
}

// buildCluster encrypts payload (which must be exactly PayloadSize bytes)
// and a hash region computed from hashSourcePayload (which may differ from
// payload, to deliberately desynchronise the stored hashes from the actual
// transmitted content for error-isolation tests) into one raw, on-disc
// 0x8000-byte cluster for cluster index c, plus the H3 digest it must be
// paired with.
func buildCluster(t *testing.T, block cipher.Block, c uint64, payload, hashSourcePayload []byte) (raw []byte, h3Digest []byte) {
	t.Helper()

	b1 := c & 7
	b2 := (c >> 3) & 7

	h0 := make([]byte, 0, h0SpanLen)
	for i := 0; i < h0Count; i++ {
		sum := sha1Sum(hashSourcePayload[0x400*i : 0x400*(i+1)])
		h0 = append(h0, sum[:]...)
	}

	h1Block := make([]byte, h1SpanLen)
	sumH1 := sha1Sum(h0)
	copy(h1Block[sha1Size*b1:], sumH1[:])

	h2Block := make([]byte, h2SpanLen)
	sumH2 := sha1Sum(h1Block)
	copy(h2Block[sha1Size*b2:], sumH2[:])

	sumH3 := sha1Sum(h2Block)

	plainHash := make([]byte, clusterDataOff)
	copy(plainHash[clusterH0Off:], h0)
	copy(plainHash[clusterH1Off:], h1Block)
	copy(plainHash[clusterH2Off:], h2Block)

	cipherHash := make([]byte, len(plainHash))
	var zeroIV [KeySize]byte
	cipher.NewCBCEncrypter(block, zeroIV[:]).CryptBlocks(cipherHash, plainHash)

	iv := make([]byte, KeySize)
	copy(iv, cipherHash[clusterIVOff:clusterIVOff+clusterIVLen])

	cipherPayload := make([]byte, len(payload))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherPayload, payload)

	raw = append(append([]byte{}, cipherHash...), cipherPayload...)
	return raw, sumH3[:]
}

func newTestPartition(t *testing.T, raw []byte, h3 []byte) *Partition {
	t.Helper()

	var key [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	h3Table := make([]byte, H3Size)
	copy(h3Table, h3)

	return &Partition{
		session:  NewSession(DefaultOptions(), key, zap.NewNop().Sugar()),
		raw:      newMemReader(raw),
		rawOff:   0,
		DataOffset: 0,
		DataSize: uint64(len(raw) - clusterDataOff),
		h3:       h3Table,
		block:    block,
	}
}

func TestReadClusterRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), PayloadSize/16)

	var key [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	raw, h3 := buildCluster(t, block, 0, payload, payload)
	p := newTestPartition(t, raw, h3)

	cl, err := p.readCluster(0)
	if err != nil {
		t.Fatalf("readCluster: %v", err)
	}

	if !bytes.Equal(cl.Payload(), payload) {
		t.Error("recovered payload does not match original")
	}
	for i, ok := range cl.matchH0 {
		if !ok {
			t.Errorf("matchH0[%d] = false, want true", i)
		}
	}
	if !cl.matchH1 || !cl.matchH2 || !cl.matchH3 {
		t.Errorf("matchH1=%v matchH2=%v matchH3=%v, want all true", cl.matchH1, cl.matchH2, cl.matchH3)
	}
	if p.session.Errors() != 0 {
		t.Errorf("session.Errors() = %#x, want 0", p.session.Errors())
	}
}

// TestReadClusterH0Mismatch corrupts one 0x400-byte block of the
// transmitted payload relative to what the hash table was computed from,
// and checks that exactly that block's H0 fails while every other level
// still verifies, i.e. a single-block corruption is isolated rather than
// cascading.
func TestReadClusterH0Mismatch(t *testing.T) {
	correct := bytes.Repeat([]byte("0123456789abcdef"), PayloadSize/16)

	corrupted := append([]byte{}, correct...)
	corrupted[5*0x400] ^= 0xff

	var key [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	raw, h3 := buildCluster(t, block, 0, corrupted, correct)
	p := newTestPartition(t, raw, h3)

	cl, err := p.readCluster(0)
	if err != nil {
		t.Fatalf("readCluster: %v", err)
	}

	for i, ok := range cl.matchH0 {
		want := i != 5
		if ok != want {
			t.Errorf("matchH0[%d] = %v, want %v", i, ok, want)
		}
	}
	if !cl.matchH1 || !cl.matchH2 || !cl.matchH3 {
		t.Errorf("matchH1=%v matchH2=%v matchH3=%v, want all true (corruption confined to H0)", cl.matchH1, cl.matchH2, cl.matchH3)
	}
	if p.session.Errors() != ErrH0 {
		t.Errorf("session.Errors() = %#x, want %#x", p.session.Errors(), ErrH0)
	}
}

func TestReadClusterH3Mismatch(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), PayloadSize/16)

	var key [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	raw, _ := buildCluster(t, block, 0, payload, payload)
	badH3 := make([]byte, sha1Size)
	badH3[0] = 0xff

	p := newTestPartition(t, raw, badH3)

	cl, err := p.readCluster(0)
	if err != nil {
		t.Fatalf("readCluster: %v", err)
	}
	if cl.matchH3 {
		t.Error("matchH3 = true, want false with a tampered H3 table")
	}
	if p.session.Errors()&ErrH3 == 0 {
		t.Errorf("session.Errors() = %#x, want ErrH3 set", p.session.Errors())
	}
}

var _ io.ReaderAt = memReader{}
