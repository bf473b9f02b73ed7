package encryption

import (
	"context"
	"encoding/json"
	"time"
)

// MediaDRMPolicy is the policy document bound into every wrapped key. The
// envelope codec and cipher treat it as opaque bytes; only the evaluator
// interprets it.
type MediaDRMPolicy struct {
	ID           string    `json:"id"`
	Audience     []string  `json:"audience,omitempty"`
	Entitlements []string  `json:"entitlements,omitempty"`
	NotBefore    time.Time `json:"notBefore,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
}

// Marshal serializes the policy for embedding into an envelope.
func (p *MediaDRMPolicy) Marshal() ([]byte, error) {
	if p.ID == "" {
		return nil, NewInvalidInputError("policy id must not be empty")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, NewInvalidInputError("policy not serializable: %v", err)
	}
	return data, nil
}

// ParsePolicy decodes an embedded policy document. Malformed policy bytes
// are a *FormatError: the envelope that carried them is unusable.
func ParsePolicy(data []byte) (*MediaDRMPolicy, error) {
	if len(data) == 0 {
		return nil, NewFormatError("policy is empty")
	}
	var p MediaDRMPolicy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, NewFormatError("policy is not valid JSON: %v", err)
	}
	if p.ID == "" {
		return nil, NewFormatError("policy is missing id")
	}
	return &p, nil
}

// EntitlementContext carries what a caller presents when asking for a key:
// who they claim to be and the token backing the claim.
type EntitlementContext struct {
	// Subject is the caller identity, advisory only; the token is what
	// the evaluator verifies.
	Subject string

	// Token is the entitlement credential, typically a signed JWT.
	Token string
}

type entitlementCtxKey struct{}

// WithEntitlement attaches the caller's entitlement context to ctx. Key
// providers read it on every unwrap; policy decisions are request-scoped,
// never cached on the provider.
func WithEntitlement(ctx context.Context, entCtx *EntitlementContext) context.Context {
	return context.WithValue(ctx, entitlementCtxKey{}, entCtx)
}

// EntitlementFromContext returns the entitlement context attached to ctx,
// or nil when none is present.
func EntitlementFromContext(ctx context.Context) *EntitlementContext {
	entCtx, _ := ctx.Value(entitlementCtxKey{}).(*EntitlementContext)
	return entCtx
}
