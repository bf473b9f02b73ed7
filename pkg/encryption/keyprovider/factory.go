package keyprovider

import (
	"encoding/base64"
	"fmt"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// Mode selects which provider realization the factory builds.
type Mode string

const (
	// ModeCompact builds the self-contained X25519 compact provider.
	ModeCompact Mode = "compact"
	// ModeManifest builds the authority-delegating manifest provider.
	ModeManifest Mode = "manifest"
)

// FactoryConfig holds the decoded settings a provider is built from.
// Key material arrives base64-encoded, matching the config file and the
// keygen tool output.
type FactoryConfig struct {
	Mode                Mode
	KASLocator          string
	RecipientPublicKey  string // base64, compact mode
	RecipientPrivateKey string // base64, compact mode, optional
}

// NewProvider builds the configured SegmentKeyProvider. The manifest mode
// receives its authority explicitly; pass nil for compact mode.
func NewProvider(cfg FactoryConfig, evaluator encryption.PolicyEvaluator, authority KeyAccessAuthority) (encryption.SegmentKeyProvider, error) {
	switch cfg.Mode {
	case ModeCompact:
		opts := CompactProviderOptions{
			KASLocator: cfg.KASLocator,
			Evaluator:  evaluator,
		}
		if cfg.RecipientPublicKey != "" {
			raw, err := base64.StdEncoding.DecodeString(cfg.RecipientPublicKey)
			if err != nil {
				return nil, fmt.Errorf("recipient public key is not valid base64: %w", err)
			}
			pub, err := ParseRecipientPublicKey(raw)
			if err != nil {
				return nil, err
			}
			opts.RecipientPublicKey = pub
		}
		if cfg.RecipientPrivateKey != "" {
			raw, err := base64.StdEncoding.DecodeString(cfg.RecipientPrivateKey)
			if err != nil {
				return nil, fmt.Errorf("recipient private key is not valid base64: %w", err)
			}
			priv, err := ParseRecipientPrivateKey(raw)
			if err != nil {
				return nil, err
			}
			opts.RecipientPrivateKey = priv
		}
		return NewCompactProvider(opts)

	case ModeManifest:
		if authority == nil {
			var err error
			authority, err = NewLocalAuthority()
			if err != nil {
				return nil, err
			}
		}
		return NewManifestProvider(cfg.KASLocator, authority, evaluator)

	default:
		return nil, fmt.Errorf("unknown provider mode %q", cfg.Mode)
	}
}
