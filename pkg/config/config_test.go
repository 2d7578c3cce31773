package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/pkg/config"
	"github.com/luxfi/mpc/pkg/field"
)

const validYAML = `
members:
  - party_id: alice
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.1:9000
  - party_id: bob
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.2:9000
  - party_id: carol
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.3:9000
leader: alice
prime: Safe64
polynomial_degree: 1
`

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadValidCluster(t *testing.T) {
	path := writeFile(t, validYAML)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Leader)
	assert.Equal(t, 1, c.Threshold())
	assert.Len(t, c.PartyIDs(), 3)
}

func TestLoadUnknownLeader(t *testing.T) {
	path := writeFile(t, `
members:
  - party_id: alice
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.1:9000
  - party_id: bob
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.2:9000
leader: mallory
prime: Safe64
polynomial_degree: 1
`)
	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrUnknownLeader)
}

func TestLoadInvalidDegree(t *testing.T) {
	path := writeFile(t, `
members:
  - party_id: alice
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.1:9000
  - party_id: bob
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.2:9000
leader: alice
prime: Safe64
polynomial_degree: 2
`)
	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalidDegree)
}

func TestLoadInvalidPublicKey(t *testing.T) {
	path := writeFile(t, `
members:
  - party_id: alice
    public_key: deadbeef
    endpoint: 10.0.0.1:9000
  - party_id: bob
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.2:9000
leader: alice
prime: Safe64
polynomial_degree: 1
`)
	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalidPublicKey)
}

func TestLoadClusterWithoutPublicKeys(t *testing.T) {
	// public_key is optional until cmd/mpcd identity-keygen has been run.
	path := writeFile(t, `
members:
  - party_id: alice
    endpoint: 10.0.0.1:9000
  - party_id: bob
    endpoint: 10.0.0.2:9000
leader: alice
prime: Safe64
polynomial_degree: 1
`)
	_, err := config.Load(path)
	require.NoError(t, err)
}

func TestLoadUnknownPrime(t *testing.T) {
	path := writeFile(t, `
members:
  - party_id: alice
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.1:9000
  - party_id: bob
    public_key: 0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798
    endpoint: 10.0.0.2:9000
leader: alice
prime: NotAPrime
polynomial_degree: 1
`)
	_, err := config.Load(path)
	assert.ErrorIs(t, err, field.ErrUnknownTag)
}
