package keyprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/tink/go/aead"
	"github.com/google/tink/go/keyset"
	"github.com/google/tink/go/tink"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// KeyAccessAuthority is the boundary to whatever holds the key-encryption
// keys a manifest envelope points at. Remote transport lives behind this
// interface; nothing in this module dials it.
type KeyAccessAuthority interface {
	// WrapKey encrypts key material under the authority's current KEK,
	// binding aad into the wrap. It returns the wrapped bytes and the ID
	// of the KEK used.
	WrapKey(ctx context.Context, key, aad []byte) (wrapped []byte, keyID string, err error)

	// UnwrapKey reverses WrapKey. keyID selects the KEK; aad must match
	// the bytes bound at wrap time.
	UnwrapKey(ctx context.Context, wrapped []byte, keyID string, aad []byte) ([]byte, error)
}

// LocalAuthority is a self-hosted key-access authority backed by a Tink
// AES-256-GCM keyset held in memory. Each authority instance issues a UUID
// key ID identifying its keyset; unwrap requests carrying a different ID
// are refused without touching the KEK.
type LocalAuthority struct {
	mu      sync.RWMutex
	kekAEAD tink.AEAD
	keyID   string
	logger  *logrus.Entry
}

// NewLocalAuthority creates an authority with a freshly generated KEK.
func NewLocalAuthority() (*LocalAuthority, error) {
	handle, err := keyset.NewHandle(aead.AES256GCMKeyTemplate())
	if err != nil {
		return nil, fmt.Errorf("failed to create KEK keyset: %w", err)
	}
	return NewLocalAuthorityFromHandle(handle)
}

// NewLocalAuthorityFromHandle creates an authority around an existing Tink
// keyset handle.
func NewLocalAuthorityFromHandle(handle *keyset.Handle) (*LocalAuthority, error) {
	if handle == nil {
		return nil, fmt.Errorf("keyset handle cannot be nil")
	}
	kekAEAD, err := aead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create KEK AEAD: %w", err)
	}
	return &LocalAuthority{
		kekAEAD: kekAEAD,
		keyID:   uuid.New().String(),
		logger:  logrus.WithField("component", "local-authority"),
	}, nil
}

// KeyID returns the ID the authority stamps onto wrapped keys.
func (a *LocalAuthority) KeyID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keyID
}

// WrapKey implements KeyAccessAuthority.
func (a *LocalAuthority) WrapKey(_ context.Context, key, aad []byte) ([]byte, string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	wrapped, err := a.kekAEAD.Encrypt(key, aad)
	if err != nil {
		return nil, "", fmt.Errorf("KEK encrypt failed: %w", err)
	}
	return wrapped, a.keyID, nil
}

// UnwrapKey implements KeyAccessAuthority.
func (a *LocalAuthority) UnwrapKey(_ context.Context, wrapped []byte, keyID string, aad []byte) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if keyID != a.keyID {
		return nil, fmt.Errorf("unknown key ID %s", keyID)
	}
	key, err := a.kekAEAD.Decrypt(wrapped, aad)
	if err != nil {
		return nil, fmt.Errorf("KEK decrypt failed: %w", err)
	}
	return key, nil
}
