// Package aead implements the AES-256-GCM segment cipher.
package aead

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// AESGCMCipher encrypts segment payloads with AES-256-GCM. Every Encrypt
// call draws a fresh random 96-bit nonce; the 128-bit tag is kept detached
// from the ciphertext so callers control the transport layout. Safe for
// concurrent use.
type AESGCMCipher struct{}

// NewAESGCMCipher creates the segment cipher.
func NewAESGCMCipher() *AESGCMCipher {
	return &AESGCMCipher{}
}

// Encrypt seals plaintext under key. Empty plaintext is valid and produces
// an empty ciphertext with a tag authenticating the associated data.
func (c *AESGCMCipher) Encrypt(_ context.Context, plaintext, key, associatedData []byte) (*encryption.EncryptedSegment, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, encryption.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, associatedData)
	split := len(sealed) - encryption.TagSize
	return &encryption.EncryptedSegment{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens ciphertext, verifying the tag over ciphertext and
// associatedData. Any verification failure returns *AuthenticationError;
// no partial plaintext ever escapes.
func (c *AESGCMCipher) Decrypt(_ context.Context, ciphertext, nonce, tag, key, associatedData []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != encryption.NonceSize {
		return nil, encryption.NewInvalidInputError(
			"nonce must be %d bytes, got %d", encryption.NonceSize, len(nonce))
	}
	if len(tag) != encryption.TagSize {
		return nil, encryption.NewInvalidInputError(
			"tag must be %d bytes, got %d", encryption.TagSize, len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, associatedData)
	if err != nil {
		return nil, &encryption.AuthenticationError{
			Reason: "tag verification failed",
			Err:    err,
		}
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != encryption.KeySize {
		return nil, encryption.NewInvalidInputError(
			"key must be %d bytes, got %d", encryption.KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM mode: %w", err)
	}
	return gcm, nil
}
