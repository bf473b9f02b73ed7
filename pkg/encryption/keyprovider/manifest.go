package keyprovider

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
	"github.com/streamvault/segmentcrypt/pkg/envelope"
)

// manifestAlgorithm is the algorithm identifier written into every manifest
// this provider issues.
const manifestAlgorithm = "A256GCM"

// ManifestProvider issues manifest-form envelopes, delegating the actual
// key wrap to a KeyAccessAuthority reachable at the configured locator.
// The policy bytes are bound into the wrap as associated data, so the
// authority refuses to unwrap under a substituted policy. Safe for
// concurrent use.
type ManifestProvider struct {
	kasLocator string
	authority  KeyAccessAuthority
	evaluator  encryption.PolicyEvaluator
	logger     *logrus.Entry
}

// NewManifestProvider creates the manifest provider.
func NewManifestProvider(kasLocator string, authority KeyAccessAuthority, evaluator encryption.PolicyEvaluator) (*ManifestProvider, error) {
	if kasLocator == "" {
		return nil, fmt.Errorf("kas locator cannot be empty")
	}
	if authority == nil {
		return nil, fmt.Errorf("key access authority cannot be nil")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("policy evaluator cannot be nil")
	}
	return &ManifestProvider{
		kasLocator: kasLocator,
		authority:  authority,
		evaluator:  evaluator,
		logger:     logrus.WithField("component", "manifest-provider"),
	}, nil
}

// ProviderFormat reports the envelope form this provider issues.
func (p *ManifestProvider) ProviderFormat() encryption.EnvelopeFormat {
	return encryption.FormatManifest
}

// GenerateWrappedKey implements encryption.SegmentKeyProvider. The issued
// manifest has no IV yet: the segment nonce does not exist until the
// payload is sealed, so the caller sets Manifest.IV before transporting
// the envelope.
func (p *ManifestProvider) GenerateWrappedKey(ctx context.Context, assetID string, segmentIndex uint32, policy *encryption.MediaDRMPolicy) (encryption.WrappedKeyEnvelope, []byte, error) {
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

	wrapped, keyID, err := p.authority.WrapKey(ctx, segmentKey, policyBytes)
	if err != nil {
		encryption.ZeroKey(segmentKey)
		return nil, nil, fmt.Errorf("authority wrap failed: %w", err)
	}

	manifest := &envelope.Manifest{
		SchemaVersion: envelope.ManifestSchemaVersion,
		WrappedKey:    wrapped,
		KASLocator:    p.kasLocator,
		Policy:        policyBytes,
		Algorithm:     manifestAlgorithm,
		KeyID:         keyID,
	}

	p.logger.WithFields(logrus.Fields{
		"asset_id":      assetID,
		"segment_index": segmentIndex,
		"policy_id":     policy.ID,
		"key_id":        keyID,
	}).Debug("Issued wrapped segment key via authority")

	return manifest, segmentKey, nil
}

// UnwrapKey implements encryption.SegmentKeyProvider. Policy evaluation
// happens locally on every call; only an allow decision reaches the
// authority.
func (p *ManifestProvider) UnwrapKey(ctx context.Context, env encryption.WrappedKeyEnvelope) ([]byte, error) {
	manifest, ok := env.(*envelope.Manifest)
	if !ok {
		return nil, encryption.NewFormatError(
			"manifest provider cannot unwrap %s envelopes", env.Format())
	}
	if manifest.Algorithm != manifestAlgorithm {
		return nil, encryption.NewFormatError(
			"unsupported manifest algorithm %q", manifest.Algorithm)
	}

	policy, err := encryption.ParsePolicy(manifest.Policy)
	if err != nil {
		return nil, err
	}
	if err := p.evaluator.Evaluate(ctx, policy, encryption.EntitlementFromContext(ctx)); err != nil {
		p.logger.WithField("policy_id", policy.ID).Debug("Policy denied key unwrap")
		return nil, &encryption.PolicyDeniedError{PolicyID: policy.ID, Reason: err.Error()}
	}

	segmentKey, err := p.authority.UnwrapKey(ctx, manifest.WrappedKey, manifest.KeyID, manifest.Policy)
	if err != nil {
		return nil, &encryption.KeyUnwrapError{Reason: "authority refused unwrap", Err: err}
	}
	if len(segmentKey) != encryption.KeySize {
		encryption.ZeroKey(segmentKey)
		return nil, &encryption.KeyUnwrapError{
			Reason: fmt.Sprintf("recovered key has wrong size %d", len(segmentKey)),
		}
	}
	return segmentKey, nil
}
