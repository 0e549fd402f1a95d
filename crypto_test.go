package wii

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

func TestSha1Sum(t *testing.T) {
	sum := sha1Sum([]byte("abc"))
	want := [sha1Size]byte{
		0xa9, 0x99, 0x3e, 0x36, 0x47, 0x06, 0x81, 0x6a, 0xba, 0x3e,
		0x25, 0x71, 0x78, 0x50, 0xc2, 0x6c, 0x9c, 0xd0, 0xd8, 0x9d,
	}
	if sum != want {
		t.Errorf("sha1Sum(\"abc\") = %x, want %x", sum, want)
	}
}

// TestDecryptTitleKey builds a title key wrap the same way the real ticket
// format does it (AES-128-CBC, IV = title ID || 8 zero bytes) and checks
// that decryptTitleKey recovers the original key.
func TestDecryptTitleKey(t *testing.T) {
	var commonKey [KeySize]byte
	copy(commonKey[:], []byte("0123456789abcdef"))

	var titleID [8]byte
	copy(titleID[:], []byte{0x00, 0x01, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04})

	var titleKey [KeySize]byte
	copy(titleKey[:], []byte("fedcba9876543210"))

	block, err := aes.NewCipher(commonKey[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	var iv [KeySize]byte
	copy(iv[:8], titleID[:])

	var wrapped [KeySize]byte
	copy(wrapped[:], titleKey[:])
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(wrapped[:], wrapped[:])

	if err := decryptTitleKey(commonKey, &wrapped, titleID); err != nil {
		t.Fatalf("decryptTitleKey: %v", err)
	}

	if !bytes.Equal(wrapped[:], titleKey[:]) {
		t.Errorf("decryptTitleKey() = %x, want %x", wrapped, titleKey)
	}
}

func TestAesCBCDecryptRoundTrip(t *testing.T) {
	var key [KeySize]byte
	copy(key[:], []byte("sixteen byte key"))
	var iv [KeySize]byte
	copy(iv[:], []byte("initvectorbytes!"))

	plaintext := bytes.Repeat([]byte{0x42}, aes.BlockSize*4)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ciphertext, plaintext)

	if err := aesCBCDecrypt(key, iv, ciphertext); err != nil {
		t.Fatalf("aesCBCDecrypt: %v", err)
	}
	if !bytes.Equal(ciphertext, plaintext) {
		t.Errorf("aesCBCDecrypt() = %x, want %x", ciphertext, plaintext)
	}
}
