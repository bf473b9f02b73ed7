// Package orchestration composes the key provider, cipher, and envelope
// codec into the segment encryption workflow.
package orchestration

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// SegmentMetadata is the per-segment record a packager stores alongside the
// encrypted payload. EnvelopeHeader carries the base64-encoded wrapped-key
// envelope; IV is the detached AEAD nonce.
type SegmentMetadata struct {
	Index          uint32    `json:"index"`
	Duration       float64   `json:"duration"`
	URL            string    `json:"url"`
	EnvelopeHeader string    `json:"envelopeHeader"`
	IV             []byte    `json:"iv"`
	AssetID        string    `json:"assetID"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate checks the structural invariants every metadata record must
// satisfy before it can drive a decrypt.
func (m *SegmentMetadata) Validate() error {
	if m.AssetID == "" {
		return encryption.NewInvalidInputError("metadata assetID must not be empty")
	}
	if m.Duration <= 0 {
		return encryption.NewInvalidInputError("metadata duration must be positive, got %g", m.Duration)
	}
	if m.EnvelopeHeader == "" {
		return encryption.NewInvalidInputError("metadata envelopeHeader must not be empty")
	}
	if len(m.IV) != encryption.NonceSize {
		return encryption.NewInvalidInputError(
			"metadata iv must be %d bytes, got %d", encryption.NonceSize, len(m.IV))
	}
	return nil
}

// Marshal serializes the metadata record.
func (m *SegmentMetadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMetadata decodes a metadata record and validates it.
func ParseMetadata(data []byte) (*SegmentMetadata, error) {
	var m SegmentMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, encryption.NewFormatError("metadata is not valid JSON: %v", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// associatedData binds a segment's identity into the AEAD tag so a payload
// cannot be replayed under another asset or index.
func associatedData(assetID string, index uint32) []byte {
	return []byte(assetID + "/" + strconv.FormatUint(uint64(index), 10))
}
