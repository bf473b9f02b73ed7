// Package keyprovider implements the two segment key provider realizations:
// the self-contained compact provider (X25519 agreement plus HKDF-derived
// key wrap) and the manifest provider that delegates wrapping to a
// key-access authority.
package keyprovider

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// RecipientKeyPair is the long-lived X25519 keypair the compact provider
// wraps segment keys to. The private key stays with the decrypting side.
type RecipientKeyPair struct {
	PrivateKey *ecdh.PrivateKey
	PublicKey  *ecdh.PublicKey
}

// GenerateRecipientKeyPair creates a fresh X25519 recipient keypair.
func GenerateRecipientKeyPair() (*RecipientKeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recipient keypair: %w", err)
	}
	return &RecipientKeyPair{PrivateKey: priv, PublicKey: priv.PublicKey()}, nil
}

// ParseRecipientPrivateKey loads a 32-byte X25519 private key.
func ParseRecipientPrivateKey(raw []byte) (*ecdh.PrivateKey, error) {
	priv, err := ecdh.X25519().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient private key: %w", err)
	}
	return priv, nil
}

// ParseRecipientPublicKey loads a 32-byte X25519 public key.
func ParseRecipientPublicKey(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := ecdh.X25519().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient public key: %w", err)
	}
	return pub, nil
}
