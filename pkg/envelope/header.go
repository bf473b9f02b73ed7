// Package envelope implements the two wrapped-key envelope serializations:
// the compact binary header carried alongside each media segment, and the
// JSON manifest document used by packaging pipelines. Both decode without
// any key recovery or policy evaluation.
package envelope

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// Compact header wire layout (big-endian, u16 length prefixes):
//
//	magic      3 bytes  "SGE"
//	version    1 byte   0x01
//	kasLocator u16 len + bytes
//	policyMode 1 byte
//	policy     u16 len + bytes
//	ephemeral  32 bytes
//	wrappedKey u16 len + bytes
//	signature  u16 len + bytes (len 0 = absent)

var headerMagic = []byte{'S', 'G', 'E'}

const (
	// HeaderVersion is the only compact header version currently written
	// or accepted.
	HeaderVersion = 0x01

	// EphemeralKeySize is the fixed length of the X25519 ephemeral public
	// key field.
	EphemeralKeySize = 32
)

// Policy embedding modes for the compact header.
const (
	// PolicyModeEmbedded means the policy field holds the full policy
	// document.
	PolicyModeEmbedded byte = 0x00
	// PolicyModeRemote means the policy field holds a reference resolved
	// by the key-access authority.
	PolicyModeRemote byte = 0x01
)

// Header is the compact binary wrapped-key envelope.
type Header struct {
	KASLocator   string
	PolicyMode   byte
	Policy       []byte
	EphemeralKey []byte
	WrappedKey   []byte
	Signature    []byte
}

// Format implements encryption.WrappedKeyEnvelope.
func (h *Header) Format() encryption.EnvelopeFormat {
	return encryption.FormatCompact
}

// PolicyBytes implements encryption.WrappedKeyEnvelope.
func (h *Header) PolicyBytes() []byte {
	return h.Policy
}

// Locator implements encryption.WrappedKeyEnvelope.
func (h *Header) Locator() string {
	return h.KASLocator
}

// Encode serializes the header. It fails only on structural invalidity:
// missing required fields, a wrong-size ephemeral key, or a variable field
// exceeding the u16 length prefix.
func (h *Header) Encode() ([]byte, error) {
	if h.KASLocator == "" {
		return nil, encryption.NewInvalidInputError("kas locator must not be empty")
	}
	if len(h.EphemeralKey) != EphemeralKeySize {
		return nil, encryption.NewInvalidInputError(
			"ephemeral key must be %d bytes, got %d", EphemeralKeySize, len(h.EphemeralKey))
	}
	if len(h.Policy) == 0 {
		return nil, encryption.NewInvalidInputError("policy must not be empty")
	}
	if len(h.WrappedKey) == 0 {
		return nil, encryption.NewInvalidInputError("wrapped key must not be empty")
	}
	if h.PolicyMode != PolicyModeEmbedded && h.PolicyMode != PolicyModeRemote {
		return nil, encryption.NewInvalidInputError("unknown policy mode 0x%02x", h.PolicyMode)
	}
	for name, field := range map[string][]byte{
		"kas locator": []byte(h.KASLocator),
		"policy":      h.Policy,
		"wrapped key": h.WrappedKey,
		"signature":   h.Signature,
	} {
		if len(field) > math.MaxUint16 {
			return nil, encryption.NewInvalidInputError(
				"%s exceeds maximum field length: %d bytes", name, len(field))
		}
	}

	buf := new(bytes.Buffer)
	buf.Write(headerMagic)
	buf.WriteByte(HeaderVersion)
	writeField(buf, []byte(h.KASLocator))
	buf.WriteByte(h.PolicyMode)
	writeField(buf, h.Policy)
	buf.Write(h.EphemeralKey)
	writeField(buf, h.WrappedKey)
	writeField(buf, h.Signature)
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, field []byte) {
	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(field)))
	buf.Write(lenPrefix[:])
	buf.Write(field)
}

// ParseHeader decodes a compact binary header. Every declared length is
// checked against the remaining input before any read, so truncated or
// corrupted data yields *encryption.FormatError rather than a panic. No key
// recovery and no policy evaluation happen here.
func ParseHeader(data []byte) (*Header, error) {
	r := &headerReader{data: data}

	magic, err := r.bytes(len(headerMagic), "magic")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, headerMagic) {
		return nil, encryption.NewFormatError("bad magic %q", magic)
	}
	version, err := r.byte("version")
	if err != nil {
		return nil, err
	}
	if version != HeaderVersion {
		return nil, encryption.NewFormatError("unsupported header version 0x%02x", version)
	}

	locator, err := r.field("kas locator")
	if err != nil {
		return nil, err
	}
	if len(locator) == 0 {
		return nil, encryption.NewFormatError("kas locator is empty")
	}
	policyMode, err := r.byte("policy mode")
	if err != nil {
		return nil, err
	}
	if policyMode != PolicyModeEmbedded && policyMode != PolicyModeRemote {
		return nil, encryption.NewFormatError("unknown policy mode 0x%02x", policyMode)
	}
	policy, err := r.field("policy")
	if err != nil {
		return nil, err
	}
	if len(policy) == 0 {
		return nil, encryption.NewFormatError("policy is empty")
	}
	ephemeral, err := r.bytes(EphemeralKeySize, "ephemeral key")
	if err != nil {
		return nil, err
	}
	wrappedKey, err := r.field("wrapped key")
	if err != nil {
		return nil, err
	}
	if len(wrappedKey) == 0 {
		return nil, encryption.NewFormatError("wrapped key is empty")
	}
	signature, err := r.field("signature")
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, encryption.NewFormatError("%d trailing bytes after header", r.remaining())
	}

	h := &Header{
		KASLocator:   string(locator),
		PolicyMode:   policyMode,
		Policy:       policy,
		EphemeralKey: ephemeral,
		WrappedKey:   wrappedKey,
	}
	if len(signature) > 0 {
		h.Signature = signature
	}
	return h, nil
}

// headerReader tracks a cursor over the input and converts every short read
// into a FormatError naming the field.
type headerReader struct {
	data []byte
	off  int
}

func (r *headerReader) remaining() int {
	return len(r.data) - r.off
}

func (r *headerReader) bytes(n int, field string) ([]byte, error) {
	if r.remaining() < n {
		return nil, encryption.NewFormatError(
			"truncated %s: need %d bytes, have %d", field, n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *headerReader) byte(field string) (byte, error) {
	b, err := r.bytes(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *headerReader) field(field string) ([]byte, error) {
	lenBytes, err := r.bytes(2, field+" length")
	if err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(lenBytes))
	return r.bytes(n, field)
}
