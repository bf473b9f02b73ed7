package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/streamvault/segmentcrypt/pkg/encryption/keyprovider"
)

func main() {
	pair, err := keyprovider.GenerateRecipientKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating recipient keypair: %v\n", err)
		os.Exit(1)
	}

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, signingKey); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating signing key: %v\n", err)
		os.Exit(1)
	}

	pub := base64.StdEncoding.EncodeToString(pair.PublicKey.Bytes())
	priv := base64.StdEncoding.EncodeToString(pair.PrivateKey.Bytes())
	sign := base64.StdEncoding.EncodeToString(signingKey)

	fmt.Printf("Generated X25519 recipient keypair and entitlement signing key (base64 encoded).\n\n")
	fmt.Printf("Packaging side (encrypt only) configuration:\n")
	fmt.Printf("provider:\n")
	fmt.Printf("  recipient_public_key: \"%s\"\n\n", pub)
	fmt.Printf("Playback side (decrypt) configuration:\n")
	fmt.Printf("provider:\n")
	fmt.Printf("  recipient_private_key: \"%s\"\n", priv)
	fmt.Printf("policy:\n")
	fmt.Printf("  signing_key: \"%s\"\n\n", sign)
	fmt.Printf("Keep the private key and signing key out of version control.\n")
}
