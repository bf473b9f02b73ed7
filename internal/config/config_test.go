package config

import (
	"encoding/base64"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	viper.Set("provider.recipient_public_key", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	viper.Set("policy.allow_insecure", true)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "compact", cfg.Provider.Mode)
	assert.Equal(t, "kas://local", cfg.Provider.KASLocator)
	assert.Equal(t, "default", cfg.Policy.ID)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Positive(t, cfg.Workers())
}

func TestLoad_InvalidProviderMode(t *testing.T) {
	resetViper(t)
	viper.Set("provider.mode", "quantum")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.mode")
}

func TestLoad_CompactRequiresRecipientKey(t *testing.T) {
	resetViper(t)
	viper.Set("policy.allow_insecure", true)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient")
}

func TestLoad_SigningKeyRequired(t *testing.T) {
	resetViper(t)
	viper.Set("provider.mode", "manifest")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key")

	viper.Set("policy.signing_key", "%%% not base64 %%%")
	_, err = Load()
	require.Error(t, err)
}

func TestSigningKey(t *testing.T) {
	resetViper(t)
	raw := []byte("0123456789abcdef0123456789abcdef")
	viper.Set("provider.mode", "manifest")
	viper.Set("policy.signing_key", base64.StdEncoding.EncodeToString(raw))

	cfg, err := Load()
	require.NoError(t, err)

	key, err := cfg.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, raw, key)
}

func TestWorkers_Explicit(t *testing.T) {
	resetViper(t)
	viper.Set("provider.mode", "manifest")
	viper.Set("policy.allow_insecure", true)
	viper.Set("batch.workers", 3)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers())
}
