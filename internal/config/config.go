// Package config loads segmentcrypt configuration from YAML files and
// environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

// ProviderConfig selects and parameterizes the segment key provider.
type ProviderConfig struct {
	Mode                string `mapstructure:"mode"`                  // "compact" or "manifest"
	KASLocator          string `mapstructure:"kas_locator"`           // key-access authority locator
	RecipientPublicKey  string `mapstructure:"recipient_public_key"`  // base64 X25519, compact mode
	RecipientPrivateKey string `mapstructure:"recipient_private_key"` // base64 X25519, compact mode decrypt side
}

// PolicyConfig holds the default policy applied to new segments and the
// entitlement-token verification key.
type PolicyConfig struct {
	ID            string   `mapstructure:"id"`
	Audience      []string `mapstructure:"audience"`
	Entitlements  []string `mapstructure:"entitlements"`
	SigningKey    string   `mapstructure:"signing_key"`    // base64 HMAC key for entitlement tokens
	AllowInsecure bool     `mapstructure:"allow_insecure"` // skip token verification (tools/tests only)
}

// BatchConfig tunes batch encryption.
type BatchConfig struct {
	Workers int `mapstructure:"workers"` // 0 = runtime.NumCPU()
}

// MonitoringConfig holds monitoring server configuration.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// Config holds the application configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "text" (default) or "json"

	URLTemplate string `mapstructure:"url_template"` // segment URL template, %s = assetID, %d = index

	Provider   ProviderConfig   `mapstructure:"provider"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// InitConfig initializes the configuration system.
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".segmentcrypt")
	}

	viper.SetEnvPrefix("SEGC")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("url_template", "segments/%s/%d.m4s")
	viper.SetDefault("provider.mode", "compact")
	viper.SetDefault("provider.kas_locator", "kas://local")
	viper.SetDefault("policy.id", "default")
	viper.SetDefault("batch.workers", 0)
	viper.SetDefault("monitoring.enabled", false)
	viper.SetDefault("monitoring.bind_address", ":9090")
	viper.SetDefault("monitoring.metrics_path", "/metrics")
}

// Load loads and validates the configuration from viper.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Provider.Mode {
	case "compact", "manifest":
	default:
		return fmt.Errorf("provider.mode must be \"compact\" or \"manifest\", got %q", cfg.Provider.Mode)
	}
	if cfg.Provider.KASLocator == "" {
		return fmt.Errorf("provider.kas_locator is required")
	}
	if cfg.Provider.Mode == "compact" &&
		cfg.Provider.RecipientPublicKey == "" && cfg.Provider.RecipientPrivateKey == "" {
		return fmt.Errorf("compact mode requires provider.recipient_public_key or provider.recipient_private_key")
	}
	if cfg.Policy.ID == "" {
		return fmt.Errorf("policy.id is required")
	}
	if !cfg.Policy.AllowInsecure {
		if cfg.Policy.SigningKey == "" {
			return fmt.Errorf("policy.signing_key is required unless policy.allow_insecure is set")
		}
		if _, err := base64.StdEncoding.DecodeString(cfg.Policy.SigningKey); err != nil {
			return fmt.Errorf("policy.signing_key is not valid base64: %w", err)
		}
	}
	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative")
	}
	return nil
}

// Workers resolves the effective batch worker count.
func (c *Config) Workers() int {
	if c.Batch.Workers > 0 {
		return c.Batch.Workers
	}
	return runtime.NumCPU()
}

// SigningKey decodes the entitlement-token signing key.
func (c *Config) SigningKey() ([]byte, error) {
	if c.Policy.SigningKey == "" {
		return nil, fmt.Errorf("policy.signing_key is not configured")
	}
	key, err := base64.StdEncoding.DecodeString(c.Policy.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("policy.signing_key is not valid base64: %w", err)
	}
	return key, nil
}
