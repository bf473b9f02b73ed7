package encryption

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// KeySize is the size of a per-segment symmetric key (AES-256).
	KeySize = 32

	// NonceSize is the AEAD nonce size in bytes (96 bits for GCM).
	NonceSize = 12

	// TagSize is the AEAD authentication tag size in bytes.
	TagSize = 16
)

// EncryptedSegment holds the output of one authenticated segment encryption.
// Ciphertext has exactly the length of the original plaintext; the tag
// authenticates ciphertext plus any associated data bound into the call.
type EncryptedSegment struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// Payload returns the transport form ciphertext||tag (tag last, fixed 16
// bytes), used where a delivery format requires a single blob.
func (s *EncryptedSegment) Payload() []byte {
	payload := make([]byte, 0, len(s.Ciphertext)+len(s.Tag))
	payload = append(payload, s.Ciphertext...)
	payload = append(payload, s.Tag...)
	return payload
}

// SplitPayload splits a combined ciphertext||tag buffer at len-16.
func SplitPayload(payload []byte) (ciphertext, tag []byte, err error) {
	if len(payload) < TagSize {
		return nil, nil, NewInvalidInputError(
			"payload too short to contain authentication tag: expected at least %d bytes, got %d", TagSize, len(payload))
	}
	split := len(payload) - TagSize
	return payload[:split], payload[split:], nil
}

// GenerateKey generates a fresh random 256-bit segment key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate segment key: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key material in place. Callers wipe every segment key
// as soon as its encrypt or decrypt call completes.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
