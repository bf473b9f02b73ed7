package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/streamvault/segmentcrypt/internal/config"
	"github.com/streamvault/segmentcrypt/internal/orchestration"
	"github.com/streamvault/segmentcrypt/pkg/encryption"
	"github.com/streamvault/segmentcrypt/pkg/encryption/aead"
	"github.com/streamvault/segmentcrypt/pkg/encryption/keyprovider"
	"github.com/streamvault/segmentcrypt/pkg/encryption/policy"
)

var (
	// Build information injected at build time
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "segmentcrypt",
		Short: "segmentcrypt encrypts streamed media segments with per-segment envelope keys",
		Long: `segmentcrypt is a packaging-side tool for segment-level media encryption.

Every segment is sealed with AES-256-GCM under its own one-time key. The key
is wrapped under a policy-bound scheme and shipped in a compact binary header
(or a JSON manifest document) alongside the segment, so a player that can
satisfy the policy can recover exactly that segment's key and nothing else.

Two key provider modes are available:
- compact: self-contained X25519 wrapping to a recipient public key
- manifest: key wrapping delegated to a key-access authority

All configuration is done through YAML configuration files. Use --config to
specify a configuration file, or segmentcrypt will look for .segmentcrypt.yaml
in standard locations.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file (YAML format)")
	rootCmd.AddCommand(encryptCmd, decryptCmd, inspectCmd)
}

func initConfig() {
	config.InitConfig(cfgFile)
}

// loadRuntime loads config, applies logging settings, and assembles the
// segment encryptor shared by the encrypt and decrypt commands.
func loadRuntime() (*config.Config, *orchestration.SegmentEncryptor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	evaluator, err := buildEvaluator(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider, err := keyprovider.NewProvider(keyprovider.FactoryConfig{
		Mode:                keyprovider.Mode(cfg.Provider.Mode),
		KASLocator:          cfg.Provider.KASLocator,
		RecipientPublicKey:  cfg.Provider.RecipientPublicKey,
		RecipientPrivateKey: cfg.Provider.RecipientPrivateKey,
	}, evaluator, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build key provider: %w", err)
	}

	encryptor, err := orchestration.NewSegmentEncryptor(provider, aead.NewAESGCMCipher(), orchestration.Options{
		Policy: &encryption.MediaDRMPolicy{
			ID:           cfg.Policy.ID,
			Audience:     cfg.Policy.Audience,
			Entitlements: cfg.Policy.Entitlements,
		},
		Workers:     cfg.Workers(),
		URLTemplate: cfg.URLTemplate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build segment encryptor: %w", err)
	}
	return cfg, encryptor, nil
}

func buildEvaluator(cfg *config.Config) (encryption.PolicyEvaluator, error) {
	if cfg.Policy.AllowInsecure {
		logrus.Warn("Policy enforcement is disabled: every key unwrap will be allowed")
		return policy.AllowAll(), nil
	}
	signingKey, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	return policy.NewJWTEvaluator(signingKey)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
