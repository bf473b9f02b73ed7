package encryption

import "fmt"

// FormatError reports a malformed, truncated, or unrecognized wrapped-key
// envelope. It is always recoverable: the caller should reject the segment
// and move on.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("envelope format: %s", e.Reason)
}

// NewFormatError creates a FormatError with a formatted reason.
func NewFormatError(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// AuthenticationError reports an AEAD tag verification failure. No plaintext
// bytes, partial or otherwise, accompany this error.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("segment authentication: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("segment authentication: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// PolicyDeniedError reports that policy evaluation rejected a key-unwrap
// request. The cryptography may be perfectly valid; the entitlement is not.
type PolicyDeniedError struct {
	PolicyID string
	Reason   string
}

func (e *PolicyDeniedError) Error() string {
	if e.PolicyID != "" {
		return fmt.Sprintf("policy %s denied: %s", e.PolicyID, e.Reason)
	}
	return fmt.Sprintf("policy denied: %s", e.Reason)
}

// KeyUnwrapError reports a cryptographically well-formed envelope whose key
// could not be recovered: wrong recipient key, corrupted wrapped ciphertext,
// or an unreachable key-access authority.
type KeyUnwrapError struct {
	Reason string
	Err    error
}

func (e *KeyUnwrapError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("key unwrap: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("key unwrap: %s", e.Reason)
}

func (e *KeyUnwrapError) Unwrap() error {
	return e.Err
}

// InvalidInputError reports a caller-supplied buffer or argument violating a
// size or structure precondition.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// NewInvalidInputError creates an InvalidInputError with a formatted reason.
func NewInvalidInputError(format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}
