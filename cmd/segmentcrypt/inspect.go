package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamvault/segmentcrypt/internal/orchestration"
	"github.com/streamvault/segmentcrypt/pkg/encryption"
	"github.com/streamvault/segmentcrypt/pkg/envelope"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [metadata or envelope file]",
	Short: "Decode a wrapped-key envelope without recovering any key",
	Long: `Inspect decodes the wrapped-key envelope from a .meta.json record or a raw
envelope file and prints its fields. No key is unwrapped and no policy is
evaluated; this is a pure codec operation.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	env, err := decodeInspectInput(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "format:      %s\n", env.Format())
	fmt.Fprintf(out, "kas locator: %s\n", env.Locator())
	if policy, err := encryption.ParsePolicy(env.PolicyBytes()); err == nil {
		fmt.Fprintf(out, "policy id:   %s\n", policy.ID)
		if len(policy.Audience) > 0 {
			fmt.Fprintf(out, "audience:    %v\n", policy.Audience)
		}
		if len(policy.Entitlements) > 0 {
			fmt.Fprintf(out, "entitlements: %v\n", policy.Entitlements)
		}
	} else {
		fmt.Fprintf(out, "policy:      %s (unparsed)\n", base64.StdEncoding.EncodeToString(env.PolicyBytes()))
	}

	switch e := env.(type) {
	case *envelope.Header:
		fmt.Fprintf(out, "ephemeral:   %s\n", base64.StdEncoding.EncodeToString(e.EphemeralKey))
		fmt.Fprintf(out, "wrapped key: %d bytes\n", len(e.WrappedKey))
		fmt.Fprintf(out, "signature:   %d bytes\n", len(e.Signature))
	case *envelope.Manifest:
		fmt.Fprintf(out, "algorithm:   %s\n", e.Algorithm)
		fmt.Fprintf(out, "key id:      %s\n", e.KeyID)
		fmt.Fprintf(out, "wrapped key: %d bytes\n", len(e.WrappedKey))
	}
	return nil
}

// decodeInspectInput accepts a metadata record, a raw envelope, or a
// base64-encoded envelope. When every decoding fails, the error from the
// form the input most resembles is returned.
func decodeInspectInput(data []byte) (encryption.WrappedKeyEnvelope, error) {
	if json.Valid(data) {
		meta, metaErr := orchestration.ParseMetadata(data)
		if metaErr == nil {
			return envelope.DecodeBase64(meta.EnvelopeHeader)
		}
		// Not a metadata record; it may be a raw manifest document.
		if env, err := envelope.Decode(data); err == nil {
			return env, nil
		}
		return nil, metaErr
	}
	env, decodeErr := envelope.Decode(data)
	if decodeErr == nil {
		return env, nil
	}
	if env, err := envelope.DecodeBase64(string(data)); err == nil {
		return env, nil
	}
	return nil, decodeErr
}
