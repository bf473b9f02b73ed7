package main

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/segmentcrypt/internal/orchestration"
	"github.com/streamvault/segmentcrypt/pkg/encryption"
	"github.com/streamvault/segmentcrypt/pkg/envelope"
)

func inspectHeader(t *testing.T) *envelope.Header {
	t.Helper()
	return &envelope.Header{
		KASLocator:   "kas://keys.example.com/v1",
		PolicyMode:   envelope.PolicyModeEmbedded,
		Policy:       []byte(`{"id":"policy-1"}`),
		EphemeralKey: make([]byte, envelope.EphemeralKeySize),
		WrappedKey:   []byte("wrapped-key-material"),
	}
}

func TestDecodeInspectInput_MetadataRecord(t *testing.T) {
	encoded, err := envelope.EncodeBase64(inspectHeader(t))
	require.NoError(t, err)

	meta := &orchestration.SegmentMetadata{
		Index:          0,
		Duration:       6.0,
		EnvelopeHeader: encoded,
		IV:             make([]byte, encryption.NonceSize),
		AssetID:        "asset-1",
		CreatedAt:      time.Now(),
	}
	data, err := meta.Marshal()
	require.NoError(t, err)

	env, err := decodeInspectInput(data)
	require.NoError(t, err)
	assert.Equal(t, encryption.FormatCompact, env.Format())
}

func TestDecodeInspectInput_RawForms(t *testing.T) {
	raw, err := inspectHeader(t).Encode()
	require.NoError(t, err)

	env, err := decodeInspectInput(raw)
	require.NoError(t, err)
	assert.Equal(t, encryption.FormatCompact, env.Format())

	env, err = decodeInspectInput([]byte(base64.StdEncoding.EncodeToString(raw)))
	require.NoError(t, err)
	assert.Equal(t, encryption.FormatCompact, env.Format())
}

// A corrupt metadata record must surface its own validation error, not a
// base64 complaint from an envelope decoding the input never was.
func TestDecodeInspectInput_CorruptMetadataError(t *testing.T) {
	meta := &orchestration.SegmentMetadata{
		Index:          0,
		Duration:       6.0,
		EnvelopeHeader: "aGVhZGVy",
		IV:             []byte{0x01}, // wrong nonce length
		AssetID:        "asset-1",
		CreatedAt:      time.Now(),
	}
	data, err := meta.Marshal()
	require.NoError(t, err)

	_, derr := decodeInspectInput(data)
	var invalidErr *encryption.InvalidInputError
	require.ErrorAs(t, derr, &invalidErr)
	assert.Contains(t, derr.Error(), "iv")
}

func TestDecodeInspectInput_UnrecognizedBinary(t *testing.T) {
	_, err := decodeInspectInput([]byte{0x00, 0x01, 0x02, 0x03})
	var formatErr *encryption.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, err.Error(), "unrecognized")
}
