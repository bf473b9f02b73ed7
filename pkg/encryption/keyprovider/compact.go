package keyprovider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
	"github.com/streamvault/segmentcrypt/pkg/envelope"
)

// wrapKeyInfo is the HKDF info label separating the wrap-key derivation
// from any other use of the same agreement.
const wrapKeyInfo = "segmentcrypt/compact-key-wrap/v1"

// CompactProvider wraps segment keys to a recipient X25519 public key:
// ephemeral-static agreement, HKDF-SHA256 wrap-key derivation, then
// AES-256-GCM with the policy bytes as associated data. A wrapped key is
// therefore unrecoverable under any policy other than the one it was
// issued with. Safe for concurrent use.
type CompactProvider struct {
	kasLocator    string
	recipientPub  *ecdh.PublicKey
	recipientPriv *ecdh.PrivateKey
	evaluator     encryption.PolicyEvaluator
	logger        *logrus.Entry
}

// CompactProviderOptions configures a CompactProvider. RecipientPrivateKey
// may be nil on an encrypt-only deployment; unwrap calls then fail.
type CompactProviderOptions struct {
	KASLocator          string
	RecipientPublicKey  *ecdh.PublicKey
	RecipientPrivateKey *ecdh.PrivateKey
	Evaluator           encryption.PolicyEvaluator
}

// NewCompactProvider creates the compact provider.
func NewCompactProvider(opts CompactProviderOptions) (*CompactProvider, error) {
	if opts.KASLocator == "" {
		return nil, fmt.Errorf("kas locator cannot be empty")
	}
	if opts.Evaluator == nil {
		return nil, fmt.Errorf("policy evaluator cannot be nil")
	}
	pub := opts.RecipientPublicKey
	if pub == nil {
		if opts.RecipientPrivateKey == nil {
			return nil, fmt.Errorf("recipient public or private key required")
		}
		pub = opts.RecipientPrivateKey.PublicKey()
	}
	return &CompactProvider{
		kasLocator:    opts.KASLocator,
		recipientPub:  pub,
		recipientPriv: opts.RecipientPrivateKey,
		evaluator:     opts.Evaluator,
		logger:        logrus.WithField("component", "compact-provider"),
	}, nil
}

// ProviderFormat reports the envelope form this provider issues.
func (p *CompactProvider) ProviderFormat() encryption.EnvelopeFormat {
	return encryption.FormatCompact
}

// GenerateWrappedKey implements encryption.SegmentKeyProvider.
func (p *CompactProvider) GenerateWrappedKey(_ context.Context, assetID string, segmentIndex uint32, policy *encryption.MediaDRMPolicy) (encryption.WrappedKeyEnvelope, []byte, error) {
	if policy == nil {
		return nil, nil, encryption.NewInvalidInputError("policy cannot be nil")
	}
	policyBytes, err := policy.Marshal()
	if err != nil {
		return nil, nil, err
	}

	segmentKey, err := encryption.GenerateKey()
	if err != nil {
		return nil, nil, err
	}

	ephemeral, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		encryption.ZeroKey(segmentKey)
		return nil, nil, fmt.Errorf("failed to generate ephemeral keypair: %w", err)
	}

	wrapKey, err := p.deriveWrapKey(ephemeral, p.recipientPub)
	if err != nil {
		encryption.ZeroKey(segmentKey)
		return nil, nil, err
	}
	defer encryption.ZeroKey(wrapKey)

	wrapped, err := sealKey(wrapKey, segmentKey, policyBytes)
	if err != nil {
		encryption.ZeroKey(segmentKey)
		return nil, nil, fmt.Errorf("failed to wrap segment key: %w", err)
	}

	header := &envelope.Header{
		KASLocator:   p.kasLocator,
		PolicyMode:   envelope.PolicyModeEmbedded,
		Policy:       policyBytes,
		EphemeralKey: ephemeral.PublicKey().Bytes(),
		WrappedKey:   wrapped,
	}

	p.logger.WithFields(logrus.Fields{
		"asset_id":      assetID,
		"segment_index": segmentIndex,
		"policy_id":     policy.ID,
	}).Debug("Issued wrapped segment key")

	return header, segmentKey, nil
}

// UnwrapKey implements encryption.SegmentKeyProvider. The embedded policy
// is parsed and evaluated before any cryptography; only an allow decision
// proceeds to key recovery.
func (p *CompactProvider) UnwrapKey(ctx context.Context, env encryption.WrappedKeyEnvelope) ([]byte, error) {
	header, ok := env.(*envelope.Header)
	if !ok {
		return nil, encryption.NewFormatError(
			"compact provider cannot unwrap %s envelopes", env.Format())
	}

	policy, err := encryption.ParsePolicy(header.Policy)
	if err != nil {
		return nil, err
	}
	if err := p.evaluator.Evaluate(ctx, policy, encryption.EntitlementFromContext(ctx)); err != nil {
		p.logger.WithField("policy_id", policy.ID).Debug("Policy denied key unwrap")
		return nil, &encryption.PolicyDeniedError{PolicyID: policy.ID, Reason: err.Error()}
	}

	if p.recipientPriv == nil {
		return nil, &encryption.KeyUnwrapError{Reason: "no recipient private key configured"}
	}
	ephemeralPub, err := ecdh.X25519().NewPublicKey(header.EphemeralKey)
	if err != nil {
		return nil, encryption.NewFormatError("invalid ephemeral public key: %v", err)
	}

	wrapKey, err := p.deriveWrapKey(p.recipientPriv, ephemeralPub)
	if err != nil {
		return nil, err
	}
	defer encryption.ZeroKey(wrapKey)

	segmentKey, err := openKey(wrapKey, header.WrappedKey, header.Policy)
	if err != nil {
		return nil, &encryption.KeyUnwrapError{Reason: "wrapped key did not open", Err: err}
	}
	if len(segmentKey) != encryption.KeySize {
		encryption.ZeroKey(segmentKey)
		return nil, &encryption.KeyUnwrapError{
			Reason: fmt.Sprintf("recovered key has wrong size %d", len(segmentKey)),
		}
	}
	return segmentKey, nil
}

// deriveWrapKey runs the X25519 agreement and derives the 32-byte wrap key
// through HKDF-SHA256.
func (p *CompactProvider) deriveWrapKey(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	defer encryption.ZeroKey(shared)

	wrapKey := make([]byte, encryption.KeySize)
	kdf := hkdf.New(sha256.New, shared, nil, []byte(wrapKeyInfo))
	if _, err := io.ReadFull(kdf, wrapKey); err != nil {
		return nil, fmt.Errorf("wrap key derivation failed: %w", err)
	}
	return wrapKey, nil
}

// sealKey encrypts the segment key under the wrap key; the result is
// nonce||ciphertext with aad authenticated.
func sealKey(wrapKey, segmentKey, aad []byte) ([]byte, error) {
	gcm, err := newKeyWrapGCM(wrapKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate wrap nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, segmentKey, aad), nil
}

// openKey reverses sealKey.
func openKey(wrapKey, wrapped, aad []byte) ([]byte, error) {
	gcm, err := newKeyWrapGCM(wrapKey)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < gcm.NonceSize() {
		return nil, fmt.Errorf("wrapped key too short: %d bytes", len(wrapped))
	}
	nonce, ciphertext := wrapped[:gcm.NonceSize()], wrapped[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, aad)
}

func newKeyWrapGCM(wrapKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize wrap cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
