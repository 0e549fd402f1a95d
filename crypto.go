package wii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
)

const sha1Size = sha1.Size

// aesCBCDecrypt decrypts ciphertext in place with key and iv. len(ciphertext)
// must be a non-zero multiple of aes.BlockSize.
func aesCBCDecrypt(key, iv [KeySize]byte, ciphertext []byte) error {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return err
	}
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(ciphertext, ciphertext)
	return nil
}

// sha1Sum returns the SHA-1 digest of b.
func sha1Sum(b []byte) [sha1Size]byte {
	return sha1.Sum(b)
}

// decryptTitleKey unwraps the 16-byte encrypted title key carried in a
// ticket, in place, using the platform common key. The IV is the 8-byte
// title id followed by 8 zero bytes, matching the wrapping scheme used by
// the ticket format (original_source/negentig.c's decrypt_title_key, and
// the equivalent title-key unwrap the teacher performs for its own ticket
// format in wud.go's NewWUD, generalised here from two keys (common+game)
// to the Wii's single common key).
func decryptTitleKey(commonKey [KeySize]byte, encryptedKey *[KeySize]byte, titleID [8]byte) error {
	var iv [KeySize]byte
	copy(iv[:8], titleID[:])
	return aesCBCDecrypt(commonKey, iv, encryptedKey[:])
}
