package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/streamvault/segmentcrypt/internal/orchestration"
	"github.com/streamvault/segmentcrypt/pkg/encryption"
)

var (
	decryptToken   string
	decryptSubject string
	decryptOutDir  string

	decryptCmd = &cobra.Command{
		Use:   "decrypt [encrypted payloads...]",
		Short: "Decrypt segment payloads using their .meta.json records",
		Long: `Decrypt recovers segment plaintext from .enc payloads. Each payload must
have a sibling .meta.json record written by the encrypt command. The policy
bound into every wrapped key is re-evaluated per segment against the
presented entitlement token.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDecrypt,
	}
)

func init() {
	decryptCmd.Flags().StringVar(&decryptToken, "token", "", "entitlement token presented to the policy evaluator")
	decryptCmd.Flags().StringVar(&decryptSubject, "subject", "", "caller identity, advisory")
	decryptCmd.Flags().StringVar(&decryptOutDir, "out-dir", ".", "directory for decrypted segments")
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	_, encryptor, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx = encryption.WithEntitlement(ctx, &encryption.EntitlementContext{
		Subject: decryptSubject,
		Token:   decryptToken,
	})

	failures := 0
	for _, path := range args {
		if err := decryptOne(ctx, encryptor, path); err != nil {
			logrus.WithError(err).WithField("segment", path).Error("Segment decryption failed")
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d segments failed", failures, len(args))
	}
	logrus.WithField("segments", len(args)).Info("Decryption complete")
	return nil
}

func decryptOne(ctx context.Context, encryptor *orchestration.SegmentEncryptor, payloadPath string) error {
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	metaJSON, err := os.ReadFile(metadataPathFor(payloadPath))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	meta, err := orchestration.ParseMetadata(metaJSON)
	if err != nil {
		return err
	}

	plaintext, err := encryptor.DecryptSegment(ctx, payload, meta)
	if err != nil {
		return err
	}

	outPath := filepath.Join(decryptOutDir, strings.TrimSuffix(filepath.Base(payloadPath), ".enc"))
	if err := os.WriteFile(outPath, plaintext, 0o600); err != nil {
		return fmt.Errorf("failed to write plaintext %s: %w", outPath, err)
	}
	return nil
}

func metadataPathFor(payloadPath string) string {
	return strings.TrimSuffix(payloadPath, ".enc") + ".meta.json"
}
