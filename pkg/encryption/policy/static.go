package policy

import (
	"context"
	"fmt"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// StaticEvaluator returns a fixed decision. Useful for tools and tests; an
// allow-all evaluator also serves deployments that enforce entitlements
// entirely at the authority boundary.
type StaticEvaluator struct {
	allow  bool
	reason string
}

// AllowAll creates an evaluator that admits every request.
func AllowAll() *StaticEvaluator {
	return &StaticEvaluator{allow: true}
}

// DenyAll creates an evaluator that refuses every request with reason.
func DenyAll(reason string) *StaticEvaluator {
	return &StaticEvaluator{allow: false, reason: reason}
}

// Evaluate implements encryption.PolicyEvaluator.
func (e *StaticEvaluator) Evaluate(_ context.Context, _ *encryption.MediaDRMPolicy, _ *encryption.EntitlementContext) error {
	if e.allow {
		return nil
	}
	return fmt.Errorf("%s", e.reason)
}
