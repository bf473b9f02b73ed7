package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

var signingKey = []byte("0123456789abcdef0123456789abcdef")

func testPolicy() *encryption.MediaDRMPolicy {
	return &encryption.MediaDRMPolicy{
		ID:           "policy-hd",
		Audience:     []string{"player-app"},
		Entitlements: []string{"hd", "offline"},
	}
}

func entCtx(t *testing.T, audience, entitlements []string, ttl time.Duration) *encryption.EntitlementContext {
	t.Helper()
	token, err := IssueToken(signingKey, "viewer-1", audience, entitlements, ttl)
	require.NoError(t, err)
	return &encryption.EntitlementContext{Subject: "viewer-1", Token: token}
}

func TestJWTEvaluator_Allow(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)

	ec := entCtx(t, []string{"player-app"}, []string{"hd", "offline", "uhd"}, time.Hour)
	assert.NoError(t, eval.Evaluate(context.Background(), testPolicy(), ec))
}

func TestJWTEvaluator_MissingToken(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)

	assert.Error(t, eval.Evaluate(context.Background(), testPolicy(), nil))
	assert.Error(t, eval.Evaluate(context.Background(), testPolicy(), &encryption.EntitlementContext{}))
}

func TestJWTEvaluator_WrongSignature(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)

	token, err := IssueToken([]byte("another-signing-key-entirely!!!!"), "viewer-1",
		[]string{"player-app"}, []string{"hd", "offline"}, time.Hour)
	require.NoError(t, err)

	err = eval.Evaluate(context.Background(), testPolicy(), &encryption.EntitlementContext{Token: token})
	assert.Error(t, err)
}

func TestJWTEvaluator_ExpiredToken(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)

	ec := entCtx(t, []string{"player-app"}, []string{"hd", "offline"}, -time.Minute)
	assert.Error(t, eval.Evaluate(context.Background(), testPolicy(), ec))
}

func TestJWTEvaluator_AudienceMismatch(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)

	ec := entCtx(t, []string{"other-app"}, []string{"hd", "offline"}, time.Hour)
	assert.Error(t, eval.Evaluate(context.Background(), testPolicy(), ec))
}

func TestJWTEvaluator_MissingEntitlements(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)

	ec := entCtx(t, []string{"player-app"}, []string{"hd"}, time.Hour)
	err = eval.Evaluate(context.Background(), testPolicy(), ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestJWTEvaluator_PolicyWindow(t *testing.T) {
	eval, err := NewJWTEvaluator(signingKey)
	require.NoError(t, err)
	ec := entCtx(t, []string{"player-app"}, []string{"hd", "offline"}, time.Hour)

	notYet := testPolicy()
	notYet.NotBefore = time.Now().Add(time.Hour)
	assert.Error(t, eval.Evaluate(context.Background(), notYet, ec))

	expired := testPolicy()
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	assert.Error(t, eval.Evaluate(context.Background(), expired, ec))
}

func TestStaticEvaluator(t *testing.T) {
	assert.NoError(t, AllowAll().Evaluate(context.Background(), testPolicy(), nil))

	err := DenyAll("maintenance").Evaluate(context.Background(), testPolicy(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")
}
