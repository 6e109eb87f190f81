package twofactor

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// SecretCipher encrypts TOTP secrets and backup codes at rest using
// AES-256-CBC with a fixed all-zero IV and PKCS#7 padding.
//
// The scheme is a known weakness: with a constant IV, equal plaintexts
// produce equal ciphertexts, and there is no authentication tag. It is kept
// unchanged because decrypting previously stored secrets depends on it; any
// migration to a random-IV authenticated mode has to re-encrypt existing
// rows first.
type SecretCipher struct {
	key []byte
}

// aesKeySize is the AES-256 key length the configured key string is
// normalized to.
const aesKeySize = 32

// NewSecretCipher derives the AES key from the configured key string by
// right-padding it with '0' to 32 bytes and truncating anything longer.
func NewSecretCipher(key string) *SecretCipher {
	k := []byte(key)
	for len(k) < aesKeySize {
		k = append(k, '0')
	}

	return &SecretCipher{key: k[:aesKeySize]}
}

// Encrypt encrypts a plaintext and returns the hex-encoded ciphertext.
func (c *SecretCipher) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))

	iv := make([]byte, aes.BlockSize) // fixed zero IV, see type comment
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(out), nil
}

// Decrypt decrypts a hex-encoded ciphertext produced by Encrypt.
// A corrupted or foreign ciphertext surfaces as an error; there is no way
// to distinguish tampering from corruption without an authentication tag.
func (c *SecretCipher) Decrypt(encrypted string) (string, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrMalformedCiphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, len(raw))

	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(plain), nil
}

// pkcs7Pad appends PKCS#7 padding up to the next block boundary. Input
// already on a boundary gets a full extra block, so padding is always
// present and removable.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize

	padded := make([]byte, len(data)+n)
	copy(padded, data)

	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}

	return padded
}

// pkcs7Unpad strips and validates PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrMalformedCiphertext
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrMalformedCiphertext
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrMalformedCiphertext
		}
	}

	return data[:len(data)-n], nil
}
