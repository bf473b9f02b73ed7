package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/streamvault/segmentcrypt/internal/monitoring"
	"github.com/streamvault/segmentcrypt/internal/orchestration"
)

var (
	encryptAssetID    string
	encryptStartIndex uint32
	encryptDuration   float64
	encryptOutDir     string

	encryptCmd = &cobra.Command{
		Use:   "encrypt [segment files...]",
		Short: "Encrypt media segments, writing .enc payloads and .meta.json records",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEncrypt,
	}
)

func init() {
	encryptCmd.Flags().StringVar(&encryptAssetID, "asset", "", "asset identifier bound into every segment (required)")
	encryptCmd.Flags().Uint32Var(&encryptStartIndex, "start-index", 0, "index assigned to the first segment")
	encryptCmd.Flags().Float64Var(&encryptDuration, "duration", 6.0, "segment duration in seconds")
	encryptCmd.Flags().StringVar(&encryptOutDir, "out-dir", ".", "directory for encrypted payloads and metadata")
	_ = encryptCmd.MarkFlagRequired("asset")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	cfg, encryptor, err := loadRuntime()
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"version":   version,
		"commit":    commit,
		"buildTime": buildTime,
	}).Debug("segmentcrypt build information")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Monitoring.Enabled {
		monitor := monitoring.NewServer(&monitoring.Config{
			BindAddress: cfg.Monitoring.BindAddress,
			MetricsPath: cfg.Monitoring.MetricsPath,
		})
		go func() {
			if err := monitor.Start(ctx); err != nil {
				logrus.WithError(err).Error("Monitoring server failed")
			}
		}()
	}

	segments := make([]orchestration.SegmentInput, 0, len(args))
	for _, path := range args {
		plaintext, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read segment %s: %w", path, err)
		}
		segments = append(segments, orchestration.SegmentInput{
			Plaintext: plaintext,
			Duration:  encryptDuration,
		})
	}

	results, err := encryptor.EncryptSegments(ctx, segments, encryptAssetID, encryptStartIndex)
	if err != nil {
		return fmt.Errorf("batch encryption aborted: %w", err)
	}

	failures := 0
	for i, res := range results {
		if res.Err != nil {
			logrus.WithError(res.Err).WithField("segment", args[i]).Error("Segment encryption failed")
			failures++
			continue
		}
		if err := writeSegmentOutput(args[i], res); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"segments": len(results),
		"failed":   failures,
	}).Info("Encryption complete")
	if failures > 0 {
		return fmt.Errorf("%d of %d segments failed", failures, len(results))
	}
	return nil
}

func writeSegmentOutput(inputPath string, res orchestration.SegmentResult) error {
	base := filepath.Base(inputPath)
	payloadPath := filepath.Join(encryptOutDir, base+".enc")
	metaPath := filepath.Join(encryptOutDir, base+".meta.json")

	if err := os.WriteFile(payloadPath, res.Payload, 0o600); err != nil {
		return fmt.Errorf("failed to write payload %s: %w", payloadPath, err)
	}
	metaJSON, err := res.Metadata.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize metadata for %s: %w", inputPath, err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", metaPath, err)
	}
	return nil
}
