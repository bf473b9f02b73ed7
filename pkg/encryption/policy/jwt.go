// Package policy provides the entitlement evaluators consulted on every
// key unwrap. Evaluators are pure predicates over (policy, entitlement
// context); they never cache a decision.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

// EntitlementClaims is the JWT claim set carried by entitlement tokens.
type EntitlementClaims struct {
	Entitlements []string `json:"entitlements,omitempty"`
	jwt.RegisteredClaims
}

// JWTEvaluator verifies HS256 entitlement tokens against a policy: the
// token must be validly signed and unexpired, its audience must intersect
// the policy audience, and its entitlements must cover every entitlement
// the policy requires. The policy's own validity window is checked against
// the evaluation time.
type JWTEvaluator struct {
	signingKey []byte
	now        func() time.Time
	logger     *logrus.Entry
}

// NewJWTEvaluator creates an evaluator verifying tokens with signingKey.
func NewJWTEvaluator(signingKey []byte) (*JWTEvaluator, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key cannot be empty")
	}
	return &JWTEvaluator{
		signingKey: signingKey,
		now:        time.Now,
		logger:     logrus.WithField("component", "policy-evaluator"),
	}, nil
}

// Evaluate implements encryption.PolicyEvaluator.
func (e *JWTEvaluator) Evaluate(_ context.Context, policy *encryption.MediaDRMPolicy, entCtx *encryption.EntitlementContext) error {
	now := e.now()
	if !policy.NotBefore.IsZero() && now.Before(policy.NotBefore) {
		return fmt.Errorf("policy not valid before %s", policy.NotBefore.Format(time.RFC3339))
	}
	if !policy.ExpiresAt.IsZero() && !now.Before(policy.ExpiresAt) {
		return fmt.Errorf("policy expired at %s", policy.ExpiresAt.Format(time.RFC3339))
	}

	if entCtx == nil || entCtx.Token == "" {
		return fmt.Errorf("no entitlement token presented")
	}

	claims := &EntitlementClaims{}
	token, err := jwt.ParseWithClaims(entCtx.Token, claims, e.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		return fmt.Errorf("entitlement token rejected: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("entitlement token invalid")
	}

	if len(policy.Audience) > 0 && !intersects(claims.Audience, policy.Audience) {
		e.logger.WithFields(logrus.Fields{
			"policy_id": policy.ID,
			"subject":   claims.Subject,
		}).Debug("Entitlement token audience mismatch")
		return fmt.Errorf("token audience does not match policy audience")
	}

	if missing := missingEntitlements(policy.Entitlements, claims.Entitlements); len(missing) > 0 {
		e.logger.WithFields(logrus.Fields{
			"policy_id": policy.ID,
			"subject":   claims.Subject,
			"missing":   missing,
		}).Debug("Entitlement token lacks required entitlements")
		return fmt.Errorf("token lacks required entitlements: %v", missing)
	}

	return nil
}

func (e *JWTEvaluator) keyFunc(_ *jwt.Token) (interface{}, error) {
	return e.signingKey, nil
}

func intersects(a jwt.ClaimStrings, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func missingEntitlements(required, held []string) []string {
	heldSet := make(map[string]struct{}, len(held))
	for _, h := range held {
		heldSet[h] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := heldSet[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// IssueToken mints an HS256 entitlement token for tests and tooling.
func IssueToken(signingKey []byte, subject string, audience, entitlements []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &EntitlementClaims{
		Entitlements: entitlements,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign entitlement token: %w", err)
	}
	return signed, nil
}
