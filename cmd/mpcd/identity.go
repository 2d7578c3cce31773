package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

// identityFile is the on-disk form of one party's node identity keypair,
// one file per party, the same shareFile-per-party layout keygen.go writes
// for Shamir shares — a cluster's config file (config.Member.PublicKey)
// and its dealt shares are separate concerns kept in separate files.
type identityFile struct {
	PartyID    string `yaml:"party_id"`
	PrivateKey string `yaml:"private_key"` // hex-encoded, 32 bytes
	PublicKey  string `yaml:"public_key"`  // hex-encoded, 33-byte compressed
}

func runIdentityKeygen(cmd *cobra.Command, args []string) error {
	c, err := loadCluster()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("mpcd: creating output directory: %w", err)
	}
	for _, m := range c.Members {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return fmt.Errorf("mpcd: generating identity key for %s: %w", m.PartyID, err)
		}
		out := identityFile{
			PartyID:    m.PartyID,
			PrivateKey: hex.EncodeToString(priv.Serialize()),
			PublicKey:  hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("mpcd: marshalling identity for %s: %w", m.PartyID, err)
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s.identity.yaml", m.PartyID))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("mpcd: writing identity for %s: %w", m.PartyID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: public_key %s\n", m.PartyID, out.PublicKey)
	}
	return nil
}
