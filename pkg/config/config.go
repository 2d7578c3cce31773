// Package config loads the Cluster description the CLI driver (cmd/mpcd)
// needs to construct a compute session: which parties exist, who leads,
// and which modulus and sharing degree the cluster has agreed to run with.
//
// This is driver-side convenience: the core packages (pkg/vm,
// pkg/compile, ...) only ever see the plain party.IDSlice/threshold
// values this package resolves a Cluster down to. The Cluster itself is a
// YAML-friendly intermediate struct, resolved with explicit, wrapped
// errors rather than left to zero-value defaults.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/party"
)

// Member is one cluster party as it appears in a cluster file.
type Member struct {
	PartyID   string `yaml:"party_id"`
	PublicKey string `yaml:"public_key"`
	Endpoint  string `yaml:"endpoint"`
}

// Cluster is the on-disk cluster description —
// `Cluster { members, leader, prime, polynomial_degree }` — plus
// the YAML struct tags a driver needs to load one from a file.
type Cluster struct {
	Members          []Member `yaml:"members"`
	Leader           string   `yaml:"leader"`
	Prime            string   `yaml:"prime"`
	PolynomialDegree int      `yaml:"polynomial_degree"`
}

// Load reads and parses a cluster file at path.
func Load(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading cluster file: %w", err)
	}
	var c Cluster
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing cluster file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ErrNoMembers is returned by Validate for a cluster with no members.
var ErrNoMembers = fmt.Errorf("config: cluster has no members")

// ErrUnknownLeader is returned by Validate when leader does not name one of
// the listed members.
var ErrUnknownLeader = fmt.Errorf("config: leader is not a listed member")

// ErrInvalidDegree is returned by Validate for a non-positive polynomial
// degree, or one too large for the member count.
var ErrInvalidDegree = fmt.Errorf("config: polynomial_degree must satisfy 1 <= t < n")

// Validate checks internal consistency: a leader that is actually a
// member, and a polynomial degree compatible with the member count.
func (c *Cluster) Validate() error {
	if len(c.Members) == 0 {
		return ErrNoMembers
	}
	found := false
	for _, m := range c.Members {
		if m.PartyID == c.Leader {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownLeader
	}
	if c.PolynomialDegree < 1 || c.PolynomialDegree >= len(c.Members) {
		return ErrInvalidDegree
	}
	if _, err := field.ParseTag(c.Prime); err != nil {
		return fmt.Errorf("config: cluster prime %q: %w", c.Prime, err)
	}
	for _, m := range c.Members {
		if m.PublicKey == "" {
			continue // identity keys are optional until cmd/mpcd identity-keygen is run
		}
		if err := validatePublicKey(m.PublicKey); err != nil {
			return fmt.Errorf("config: member %s: %w", m.PartyID, err)
		}
	}
	return nil
}

// ErrInvalidPublicKey is returned for a member's public_key field that does
// not decode to a point on the secp256k1 curve (cmd/mpcd identity-keygen's
// output format: hex-encoded SEC1 compressed, 33 bytes).
var ErrInvalidPublicKey = fmt.Errorf("config: public_key is not a valid compressed secp256k1 point")

func validatePublicKey(hexKey string) error {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return nil
}

// PartyIDs returns the cluster's members as the party.IDSlice the core
// packages operate over.
func (c *Cluster) PartyIDs() party.IDSlice {
	ids := make(party.IDSlice, len(c.Members))
	for i, m := range c.Members {
		ids[i] = party.ID(m.PartyID)
	}
	return ids.Sorted()
}

// PrimeTag resolves the cluster's configured modulus name to its runtime
// field.Tag.
func (c *Cluster) PrimeTag() (field.Tag, error) {
	return field.ParseTag(c.Prime)
}

// Threshold returns the cluster's reconstruction threshold, another name
// for its polynomial degree.
func (c *Cluster) Threshold() int {
	return c.PolynomialDegree
}
