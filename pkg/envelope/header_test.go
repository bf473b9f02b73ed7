package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

func sampleHeader() *Header {
	ephemeral := make([]byte, EphemeralKeySize)
	for i := range ephemeral {
		ephemeral[i] = byte(i)
	}
	return &Header{
		KASLocator:   "kas://keys.example.com/v1",
		PolicyMode:   PolicyModeEmbedded,
		Policy:       []byte(`{"id":"policy-1"}`),
		EphemeralKey: ephemeral,
		WrappedKey:   []byte("wrapped-key-material-bytes"),
	}
}

func TestHeader_EncodeParse(t *testing.T) {
	h := sampleHeader()

	encoded, err := h.Encode()
	require.NoError(t, err)

	parsed, err := ParseHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestHeader_EncodeParse_WithSignature(t *testing.T) {
	h := sampleHeader()
	h.Signature = []byte("binding-signature")

	encoded, err := h.Encode()
	require.NoError(t, err)

	parsed, err := ParseHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestHeader_Encode_Invalid(t *testing.T) {
	var invalidErr *encryption.InvalidInputError

	h := sampleHeader()
	h.KASLocator = ""
	_, err := h.Encode()
	require.ErrorAs(t, err, &invalidErr)

	h = sampleHeader()
	h.EphemeralKey = h.EphemeralKey[:31]
	_, err = h.Encode()
	require.ErrorAs(t, err, &invalidErr)

	h = sampleHeader()
	h.Policy = nil
	_, err = h.Encode()
	require.ErrorAs(t, err, &invalidErr)

	h = sampleHeader()
	h.WrappedKey = nil
	_, err = h.Encode()
	require.ErrorAs(t, err, &invalidErr)

	h = sampleHeader()
	h.PolicyMode = 0x7f
	_, err = h.Encode()
	require.ErrorAs(t, err, &invalidErr)

	h = sampleHeader()
	h.Policy = make([]byte, 65536)
	_, err = h.Encode()
	require.ErrorAs(t, err, &invalidErr)
}

// Every strict prefix of a valid header must fail cleanly with a format
// error, never panic or succeed.
func TestParseHeader_TruncationPrefixes(t *testing.T) {
	encoded, err := sampleHeader().Encode()
	require.NoError(t, err)

	var formatErr *encryption.FormatError
	for i := 0; i < len(encoded); i++ {
		_, err := ParseHeader(encoded[:i])
		require.ErrorAs(t, err, &formatErr, "prefix of length %d must be rejected", i)
	}
}

func TestParseHeader_BadMagicAndVersion(t *testing.T) {
	encoded, err := sampleHeader().Encode()
	require.NoError(t, err)

	var formatErr *encryption.FormatError

	badMagic := append([]byte(nil), encoded...)
	badMagic[0] = 'X'
	_, perr := ParseHeader(badMagic)
	require.ErrorAs(t, perr, &formatErr)

	badVersion := append([]byte(nil), encoded...)
	badVersion[3] = 0x02
	_, perr = ParseHeader(badVersion)
	require.ErrorAs(t, perr, &formatErr)
}

func TestParseHeader_TrailingBytes(t *testing.T) {
	encoded, err := sampleHeader().Encode()
	require.NoError(t, err)

	var formatErr *encryption.FormatError
	_, perr := ParseHeader(append(encoded, 0x00))
	require.ErrorAs(t, perr, &formatErr)
}

func TestParseHeader_DeclaredLengthBeyondInput(t *testing.T) {
	encoded, err := sampleHeader().Encode()
	require.NoError(t, err)

	// Inflate the kas locator length prefix past the end of the input.
	corrupted := append([]byte(nil), encoded...)
	corrupted[4] = 0xff
	corrupted[5] = 0xff

	var formatErr *encryption.FormatError
	_, perr := ParseHeader(corrupted)
	require.ErrorAs(t, perr, &formatErr)
}
