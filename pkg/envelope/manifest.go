package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// ManifestSchemaVersion is the only manifest schema currently written or
// accepted.
const ManifestSchemaVersion = 1

// Manifest is the JSON wrapped-key envelope used by manifest-driven
// packaging pipelines. []byte fields are base64 in transport via the
// standard JSON encoding.
//
// A key provider issues the manifest before the segment is sealed, so the
// IV is filled in by the caller once the nonce exists. Encode therefore
// tolerates an absent IV; ParseManifest requires it, since a transported
// manifest without its nonce cannot drive a decrypt.
type Manifest struct {
	SchemaVersion int    `json:"schemaVersion"`
	WrappedKey    []byte `json:"wrappedKey"`
	KASLocator    string `json:"kasLocator"`
	Policy        []byte `json:"policy"`
	IV            []byte `json:"iv"`
	Algorithm     string `json:"algorithm"`
	KeyID         string `json:"keyID,omitempty"`
}

// Format implements encryption.WrappedKeyEnvelope.
func (m *Manifest) Format() encryption.EnvelopeFormat {
	return encryption.FormatManifest
}

// PolicyBytes implements encryption.WrappedKeyEnvelope.
func (m *Manifest) PolicyBytes() []byte {
	return m.Policy
}

// Locator implements encryption.WrappedKeyEnvelope.
func (m *Manifest) Locator() string {
	return m.KASLocator
}

// Encode serializes the manifest, failing on missing required fields.
func (m *Manifest) Encode() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, encryption.NewInvalidInputError("manifest not serializable: %v", err)
	}
	return data, nil
}

func (m *Manifest) validate() error {
	if m.SchemaVersion != ManifestSchemaVersion {
		return encryption.NewInvalidInputError(
			"unsupported manifest schema version %d", m.SchemaVersion)
	}
	if len(m.WrappedKey) == 0 {
		return encryption.NewInvalidInputError("manifest wrappedKey must not be empty")
	}
	if m.KASLocator == "" {
		return encryption.NewInvalidInputError("manifest kasLocator must not be empty")
	}
	if len(m.Policy) == 0 {
		return encryption.NewInvalidInputError("manifest policy must not be empty")
	}
	return nil
}

// ParseManifest decodes a manifest document, rejecting missing required
// fields and unknown schema versions with *encryption.FormatError.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, encryption.NewFormatError("manifest is not valid JSON: %v", err)
	}
	if m.SchemaVersion != ManifestSchemaVersion {
		return nil, encryption.NewFormatError(
			"unsupported manifest schema version %d", m.SchemaVersion)
	}
	if len(m.WrappedKey) == 0 {
		return nil, encryption.NewFormatError("manifest is missing wrappedKey")
	}
	if m.KASLocator == "" {
		return nil, encryption.NewFormatError("manifest is missing kasLocator")
	}
	if len(m.Policy) == 0 {
		return nil, encryption.NewFormatError("manifest is missing policy")
	}
	if len(m.IV) == 0 {
		return nil, encryption.NewFormatError("manifest is missing iv")
	}
	return &m, nil
}

// Decode sniffs the envelope form (compact magic vs JSON object) and decodes
// it. Input that is neither form is a *encryption.FormatError.
func Decode(data []byte) (encryption.WrappedKeyEnvelope, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case bytes.HasPrefix(data, headerMagic):
		return ParseHeader(data)
	case len(trimmed) > 0 && trimmed[0] == '{':
		return ParseManifest(trimmed)
	default:
		return nil, encryption.NewFormatError("unrecognized envelope encoding")
	}
}

// EncodeBase64 serializes an envelope for embedding into segment metadata.
func EncodeBase64(env encryption.WrappedKeyEnvelope) (string, error) {
	raw, err := env.Encode()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBase64 decodes a metadata-embedded envelope.
func DecodeBase64(s string) (encryption.WrappedKeyEnvelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, encryption.NewFormatError("envelope is not valid base64: %v", err)
	}
	return Decode(raw)
}
