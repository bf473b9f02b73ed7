package orchestration

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamvault/segmentcrypt/internal/monitoring"
	"github.com/streamvault/segmentcrypt/pkg/encryption"
	"github.com/streamvault/segmentcrypt/pkg/envelope"
)

// Options configures a SegmentEncryptor.
type Options struct {
	// Policy is applied to every segment key the encryptor issues.
	Policy *encryption.MediaDRMPolicy

	// Workers bounds batch concurrency; 0 means runtime.NumCPU().
	Workers int

	// URLTemplate renders SegmentMetadata.URL via fmt.Sprintf with
	// (assetID, index). Empty leaves the URL blank.
	URLTemplate string
}

// SegmentEncryptor drives the full per-segment workflow: issue a wrapped
// key, seal the payload, assemble metadata, and wipe the key. Safe for
// concurrent use.
type SegmentEncryptor struct {
	provider encryption.SegmentKeyProvider
	cipher   encryption.SegmentCipher
	opts     Options
	logger   *logrus.Entry
}

// NewSegmentEncryptor creates the orchestrator.
func NewSegmentEncryptor(provider encryption.SegmentKeyProvider, cipher encryption.SegmentCipher, opts Options) (*SegmentEncryptor, error) {
	if provider == nil {
		return nil, fmt.Errorf("key provider cannot be nil")
	}
	if cipher == nil {
		return nil, fmt.Errorf("segment cipher cannot be nil")
	}
	if opts.Policy == nil {
		return nil, fmt.Errorf("policy cannot be nil")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &SegmentEncryptor{
		provider: provider,
		cipher:   cipher,
		opts:     opts,
		logger:   logrus.WithField("component", "segment-encryptor"),
	}, nil
}

// EncryptSegment encrypts one segment. The returned payload is
// ciphertext||tag; the metadata record carries everything needed to decrypt
// it later. The segment key never outlives this call.
func (e *SegmentEncryptor) EncryptSegment(ctx context.Context, plaintext []byte, assetID string, segmentIndex uint32, duration float64) ([]byte, *SegmentMetadata, error) {
	if assetID == "" {
		return nil, nil, encryption.NewInvalidInputError("assetID must not be empty")
	}
	if duration <= 0 {
		return nil, nil, encryption.NewInvalidInputError("duration must be positive, got %g", duration)
	}

	start := time.Now()
	providerName := string(envelopeFormatOf(e.provider))

	env, key, err := e.provider.GenerateWrappedKey(ctx, assetID, segmentIndex, e.opts.Policy)
	if err != nil {
		monitoring.SegmentOperationsTotal.WithLabelValues("encrypt", providerName, "error").Inc()
		return nil, nil, fmt.Errorf("failed to issue segment key: %w", err)
	}
	defer encryption.ZeroKey(key)

	sealed, err := e.cipher.Encrypt(ctx, plaintext, key, associatedData(assetID, segmentIndex))
	if err != nil {
		monitoring.SegmentOperationsTotal.WithLabelValues("encrypt", providerName, "error").Inc()
		return nil, nil, fmt.Errorf("segment encryption failed: %w", err)
	}

	// Manifest envelopes carry the nonce in-band as well.
	if manifest, ok := env.(*envelope.Manifest); ok {
		manifest.IV = sealed.Nonce
	}

	encoded, err := envelope.EncodeBase64(env)
	if err != nil {
		monitoring.SegmentOperationsTotal.WithLabelValues("encrypt", providerName, "error").Inc()
		return nil, nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	meta := &SegmentMetadata{
		Index:          segmentIndex,
		Duration:       duration,
		EnvelopeHeader: encoded,
		IV:             sealed.Nonce,
		AssetID:        assetID,
		CreatedAt:      time.Now().UTC(),
	}
	if e.opts.URLTemplate != "" {
		meta.URL = fmt.Sprintf(e.opts.URLTemplate, assetID, segmentIndex)
	}

	monitoring.SegmentOperationsTotal.WithLabelValues("encrypt", providerName, "success").Inc()
	monitoring.SegmentOperationDuration.WithLabelValues("encrypt", providerName).Observe(time.Since(start).Seconds())
	monitoring.SegmentBytesProcessed.WithLabelValues("encrypt").Add(float64(len(plaintext)))

	e.logger.WithFields(logrus.Fields{
		"asset_id":      assetID,
		"segment_index": segmentIndex,
		"plaintext_len": len(plaintext),
	}).Debug("Segment encrypted")

	return sealed.Payload(), meta, nil
}

// DecryptSegment recovers a segment's plaintext from its payload and
// metadata record. The policy bound into the envelope is re-evaluated on
// every call; the four error kinds from the unwrap and decrypt paths
// propagate unchanged.
func (e *SegmentEncryptor) DecryptSegment(ctx context.Context, payload []byte, meta *SegmentMetadata) ([]byte, error) {
	if meta == nil {
		return nil, encryption.NewInvalidInputError("metadata cannot be nil")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	providerName := string(envelopeFormatOf(e.provider))

	env, err := envelope.DecodeBase64(meta.EnvelopeHeader)
	if err != nil {
		monitoring.SegmentOperationsTotal.WithLabelValues("decrypt", providerName, "error").Inc()
		return nil, err
	}

	key, err := e.provider.UnwrapKey(ctx, env)
	if err != nil {
		var denied *encryption.PolicyDeniedError
		var unwrap *encryption.KeyUnwrapError
		switch {
		case errors.As(err, &denied):
			monitoring.PolicyDenialsTotal.WithLabelValues(providerName).Inc()
		case errors.As(err, &unwrap):
			monitoring.KeyUnwrapFailuresTotal.WithLabelValues(providerName).Inc()
		}
		monitoring.SegmentOperationsTotal.WithLabelValues("decrypt", providerName, "error").Inc()
		return nil, err
	}
	defer encryption.ZeroKey(key)

	ciphertext, tag, err := encryption.SplitPayload(payload)
	if err != nil {
		monitoring.SegmentOperationsTotal.WithLabelValues("decrypt", providerName, "error").Inc()
		return nil, err
	}

	plaintext, err := e.cipher.Decrypt(ctx, ciphertext, meta.IV, tag, key, associatedData(meta.AssetID, meta.Index))
	if err != nil {
		monitoring.SegmentOperationsTotal.WithLabelValues("decrypt", providerName, "error").Inc()
		return nil, err
	}

	monitoring.SegmentOperationsTotal.WithLabelValues("decrypt", providerName, "success").Inc()
	monitoring.SegmentOperationDuration.WithLabelValues("decrypt", providerName).Observe(time.Since(start).Seconds())
	monitoring.SegmentBytesProcessed.WithLabelValues("decrypt").Add(float64(len(plaintext)))

	return plaintext, nil
}

// envelopeFormatOf labels metrics by provider realization without the
// provider having to know about monitoring.
func envelopeFormatOf(provider encryption.SegmentKeyProvider) encryption.EnvelopeFormat {
	type formatHint interface {
		ProviderFormat() encryption.EnvelopeFormat
	}
	if h, ok := provider.(formatHint); ok {
		return h.ProviderFormat()
	}
	return "unknown"
}
