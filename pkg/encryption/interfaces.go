package encryption

import "context"

// EnvelopeFormat identifies how a wrapped-key envelope is serialized.
type EnvelopeFormat string

const (
	// FormatCompact is the binary header carried alongside each segment.
	FormatCompact EnvelopeFormat = "compact"
	// FormatManifest is the JSON document form used by manifest-driven
	// packaging pipelines.
	FormatManifest EnvelopeFormat = "manifest"
)

// WrappedKeyEnvelope is a serialized description of how to recover one
// segment key: which authority to ask, under what policy, and the wrapped
// key material itself. Decoding an envelope never recovers the key.
type WrappedKeyEnvelope interface {
	// Format reports the serialization this envelope uses.
	Format() EnvelopeFormat

	// Encode serializes the envelope to its transport form.
	Encode() ([]byte, error)

	// PolicyBytes returns the embedded policy document, uninterpreted.
	PolicyBytes() []byte

	// Locator identifies the key-access authority able to unwrap the key.
	Locator() string
}

// SegmentKeyProvider issues fresh per-segment keys in wrapped form and
// recovers them later, re-evaluating the bound policy on every unwrap.
// Implementations must be safe for concurrent use.
type SegmentKeyProvider interface {
	// GenerateWrappedKey creates a fresh 32-byte segment key, binds the
	// policy into its wrapping, and returns both the envelope and the raw
	// key. The caller owns the raw key and must wipe it after use.
	GenerateWrappedKey(ctx context.Context, assetID string, segmentIndex uint32, policy *MediaDRMPolicy) (WrappedKeyEnvelope, []byte, error)

	// UnwrapKey recovers the segment key from an envelope. The embedded
	// policy is parsed and evaluated before any key material is
	// constructed; a denial returns *PolicyDeniedError with no key bytes.
	UnwrapKey(ctx context.Context, env WrappedKeyEnvelope) ([]byte, error)
}

// SegmentCipher performs authenticated encryption of segment payloads.
// Implementations must be safe for concurrent use.
type SegmentCipher interface {
	// Encrypt seals plaintext under key with a fresh random nonce,
	// authenticating associatedData alongside the ciphertext.
	Encrypt(ctx context.Context, plaintext, key, associatedData []byte) (*EncryptedSegment, error)

	// Decrypt opens ciphertext, verifying the tag over ciphertext and
	// associatedData. A verification failure returns *AuthenticationError
	// and no plaintext bytes.
	Decrypt(ctx context.Context, ciphertext, nonce, tag, key, associatedData []byte) ([]byte, error)
}

// PolicyEvaluator is the allow/deny collaborator consulted on every key
// unwrap. Implementations are pure predicates: no caching, no side effects
// beyond their own telemetry.
type PolicyEvaluator interface {
	// Evaluate returns nil when entCtx satisfies policy, and an error
	// describing the refusal otherwise. Callers translate a non-nil
	// result into *PolicyDeniedError.
	Evaluate(ctx context.Context, policy *MediaDRMPolicy, entCtx *EntitlementContext) error
}
