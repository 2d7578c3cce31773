package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"

	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/shamir"
)

// shareFile is the on-disk form of one party's share of a dealt secret,
// one file per party.
type shareFile struct {
	PartyID string `yaml:"party_id"`
	X       string `yaml:"x"` // hex-encoded field.Encoded.Bytes
	Y       string `yaml:"y"`
}

func runKeygen(cmd *cobra.Command, args []string) error {
	c, err := loadCluster()
	if err != nil {
		return err
	}
	cluster := c.PartyIDs()

	secret := field.FromUint64[field.Safe64](secretValue)
	shares, err := shamir.Deal[field.Safe64](rand.Reader, secret, c.Threshold(), cluster)
	if err != nil {
		return fmt.Errorf("mpcd: dealing secret: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("mpcd: creating output directory: %w", err)
	}
	for id, share := range shares {
		out := shareFile{
			PartyID: string(id),
			X:       hex.EncodeToString(field.Encode(share.X).Bytes),
			Y:       hex.EncodeToString(field.Encode(share.Y).Bytes),
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("mpcd: marshalling share for %s: %w", id, err)
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s.share.yaml", id))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("mpcd: writing share for %s: %w", id, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dealt secret %d across %d parties, threshold %d\n", secretValue, len(cluster), c.Threshold())
	return nil
}
