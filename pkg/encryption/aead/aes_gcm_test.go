package aead

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestAESGCMCipher_EncryptDecrypt(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()
	key := testKey(t)
	plaintext := []byte("Sample media segment payload for round-trip verification.")
	aad := []byte("asset-1/0")

	sealed, err := cipher.Encrypt(ctx, plaintext, key, aad)
	require.NoError(t, err)
	assert.Len(t, sealed.Ciphertext, len(plaintext), "ciphertext should match plaintext length")
	assert.Len(t, sealed.Nonce, encryption.NonceSize)
	assert.Len(t, sealed.Tag, encryption.TagSize)
	assert.NotEqual(t, plaintext, sealed.Ciphertext)

	decrypted, err := cipher.Decrypt(ctx, sealed.Ciphertext, sealed.Nonce, sealed.Tag, key, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESGCMCipher_EmptyPlaintext(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()
	key := testKey(t)
	aad := []byte("asset-1/7")

	sealed, err := cipher.Encrypt(ctx, nil, key, aad)
	require.NoError(t, err)
	assert.Empty(t, sealed.Ciphertext)
	assert.Len(t, sealed.Tag, encryption.TagSize, "empty plaintext still yields a full tag")

	decrypted, err := cipher.Decrypt(ctx, sealed.Ciphertext, sealed.Nonce, sealed.Tag, key, aad)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestAESGCMCipher_HelloWorld(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()
	key := testKey(t)
	plaintext := []byte("hello world")
	aad := []byte("demo/0")

	sealed, err := cipher.Encrypt(ctx, plaintext, key, aad)
	require.NoError(t, err)
	assert.Len(t, sealed.Ciphertext, 11)
	assert.Len(t, sealed.Tag, 16)

	decrypted, err := cipher.Decrypt(ctx, sealed.Ciphertext, sealed.Nonce, sealed.Tag, key, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	// Flipping the low bit of the first tag byte must fail authentication.
	tampered := append([]byte(nil), sealed.Tag...)
	tampered[0] ^= 0x01
	_, err = cipher.Decrypt(ctx, sealed.Ciphertext, sealed.Nonce, tampered, key, aad)
	var authErr *encryption.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestAESGCMCipher_TamperDetection(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()
	key := testKey(t)
	plaintext := []byte("segment bytes that must not survive a single bit flip")
	aad := []byte("asset-9/42")

	sealed, err := cipher.Encrypt(ctx, plaintext, key, aad)
	require.NoError(t, err)

	flipBit := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i%len(out)] ^= 1 << (i % 8)
		return out
	}

	cases := map[string]struct {
		ciphertext, nonce, tag, aad []byte
	}{
		"ciphertext": {flipBit(sealed.Ciphertext, 3), sealed.Nonce, sealed.Tag, aad},
		"nonce":      {sealed.Ciphertext, flipBit(sealed.Nonce, 5), sealed.Tag, aad},
		"tag":        {sealed.Ciphertext, sealed.Nonce, flipBit(sealed.Tag, 11), aad},
		"aad":        {sealed.Ciphertext, sealed.Nonce, sealed.Tag, []byte("asset-9/43")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			plaintext, err := cipher.Decrypt(ctx, tc.ciphertext, tc.nonce, tc.tag, key, tc.aad)
			var authErr *encryption.AuthenticationError
			require.ErrorAs(t, err, &authErr)
			assert.Nil(t, plaintext, "no plaintext may escape a failed authentication")
		})
	}
}

func TestAESGCMCipher_WrongKey(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()
	key := testKey(t)
	otherKey := testKey(t)
	aad := []byte("asset-2/0")

	sealed, err := cipher.Encrypt(ctx, []byte("payload"), key, aad)
	require.NoError(t, err)

	_, err = cipher.Decrypt(ctx, sealed.Ciphertext, sealed.Nonce, sealed.Tag, otherKey, aad)
	var authErr *encryption.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestAESGCMCipher_InvalidKeySize(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()

	var invalidErr *encryption.InvalidInputError
	_, err := cipher.Encrypt(ctx, []byte("data"), make([]byte, 16), nil)
	require.ErrorAs(t, err, &invalidErr)

	_, err = cipher.Decrypt(ctx, nil, make([]byte, 12), make([]byte, 16), make([]byte, 31), nil)
	require.ErrorAs(t, err, &invalidErr)
}

func TestAESGCMCipher_NonceDistinctness(t *testing.T) {
	cipher := NewAESGCMCipher()
	ctx := context.Background()
	key := testKey(t)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		sealed, err := cipher.Encrypt(ctx, []byte("x"), key, nil)
		require.NoError(t, err)
		_, dup := seen[string(sealed.Nonce)]
		require.False(t, dup, "nonce repeated after %d encryptions", i)
		seen[string(sealed.Nonce)] = struct{}{}
	}
}
