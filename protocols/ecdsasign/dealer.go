package ecdsasign

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
)

// AuxDeal is one dealt batch of signing material: a per-party EcdsaAuxInfo
// tuple, all consistent with a single signing key and a single one-time
// nonce.
type AuxDeal struct {
	PublicKey *secp256k1.PublicKey
	Infos     map[party.ID]preprocessing.EcdsaAuxInfo
}

// DealAux generates one signing invocation's worth of auxiliary material
// for the whole cluster: a signing key x, a nonce k, and degree-threshold
// Shamir sharings of x, k, k^-1 and k^-1*x, each under an independent
// random polynomial.
//
// This is the trusted-dealer stand-in for the distributed ECDSA-AUX-INFO
// ceremony: protocols/ecdsaaux's background Generator calls it (or a real
// multi-party equivalent) per produced tuple. The key never exists in one
// place in a real deployment; here it exists only inside this function and
// is discarded once shared.
func DealAux(cluster party.IDSlice, threshold int) (AuxDeal, error) {
	if threshold < 1 || threshold >= len(cluster) {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: threshold must satisfy 1 <= t < n")
	}

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: generating key: %w", err)
	}
	x := &priv.Key
	pub := priv.PubKey()

	noncePriv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: generating nonce: %w", err)
	}
	k := &noncePriv.Key
	noncePoint := noncePriv.PubKey()

	kInv := new(secp256k1.ModNScalar).Set(k)
	kInv.InverseNonConst()
	kInvX := new(secp256k1.ModNScalar).Set(kInv)
	kInvX.Mul(x)

	randomScalar := func() (*secp256k1.ModNScalar, error) {
		p, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		return &p.Key, nil
	}

	xShares, err := dealScalar(x, threshold, cluster, randomScalar)
	if err != nil {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: sharing key: %w", err)
	}
	kShares, err := dealScalar(k, threshold, cluster, randomScalar)
	if err != nil {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: sharing nonce: %w", err)
	}
	kInvShares, err := dealScalar(kInv, threshold, cluster, randomScalar)
	if err != nil {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: sharing nonce inverse: %w", err)
	}
	kInvXShares, err := dealScalar(kInvX, threshold, cluster, randomScalar)
	if err != nil {
		return AuxDeal{}, fmt.Errorf("ecdsasign.DealAux: sharing nonce inverse key product: %w", err)
	}

	pubBytes := pub.SerializeCompressed()
	nonceBytes := noncePoint.SerializeCompressed()
	infos := make(map[party.ID]preprocessing.EcdsaAuxInfo, len(cluster))
	for _, id := range cluster {
		infos[id] = preprocessing.EcdsaAuxInfo{
			KeyShare:         scalarBytes(xShares[id]),
			PublicKey:        append([]byte(nil), pubBytes...),
			NonceShare:       scalarBytes(kShares[id]),
			NonceInvShare:    scalarBytes(kInvShares[id]),
			NonceInvKeyShare: scalarBytes(kInvXShares[id]),
			NoncePoint:       append([]byte(nil), nonceBytes...),
		}
	}
	return AuxDeal{PublicKey: pub, Infos: infos}, nil
}
