package main

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/spf13/cobra"

	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/hash"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/vm"
	"github.com/luxfi/mpc/protocols/ecdsasign"
)

// signProgram builds "sig = ecdsa_sign(m)" as an ir.Program: one public
// message input, one signing operation consuming an EcdsaAuxInfo element.
func signProgram() *ir.Program {
	m := &ir.Node{ID: 0, Op: ir.Load, Type: ir.ValueType{Kind: ir.Integer, Visibility: ir.Public}}
	sig := &ir.Node{ID: 1, Op: ir.EcdsaSign, Type: ir.ValueType{Kind: ir.Integer, Visibility: ir.Public}, Operands: []ir.NodeID{0}}
	return &ir.Program{
		Nodes:   []*ir.Node{m, sig},
		Inputs:  map[string]ir.NodeID{"m": 0},
		Outputs: map[string]ir.NodeID{"sig": 1},
	}
}

func runSign(cmd *cobra.Command, args []string) error {
	c, err := loadCluster()
	if err != nil {
		return err
	}
	cluster := c.PartyIDs()
	threshold := c.Threshold()

	lowered, err := bytecode.Lower(signProgram())
	if err != nil {
		return fmt.Errorf("mpcd: lowering sign program: %w", err)
	}
	compiled, err := compile.Compile(lowered)
	if err != nil {
		return fmt.Errorf("mpcd: compiling sign program: %w", err)
	}

	// One dealt aux tuple per party stands in for the distributed
	// ECDSA-AUX-INFO ceremony a deployed cluster runs ahead of time.
	deal, err := ecdsasign.DealAux(cluster, threshold)
	if err != nil {
		return fmt.Errorf("mpcd: dealing aux material: %w", err)
	}

	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "Message", Bytes: []byte(signMessage)})
	digest := h.Sum()

	vms := map[party.ID]*vm.VM[field.Safe64]{}
	for _, id := range cluster {
		bundle := preprocessing.NewBundle[field.Safe64]()
		bundle.AddEcdsaAux(deal.Infos[id])
		inputs := map[string]vm.Value[field.Safe64]{
			"m": vm.BytesValue[field.Safe64](digest),
		}
		theVM, err := vm.New[field.Safe64]("mpcd-sign", cluster, id, threshold, compiled, bundle, inputs)
		if err != nil {
			return fmt.Errorf("mpcd: constructing VM for %s: %w", id, err)
		}
		vms[id] = theVM
	}

	results, err := driveToCompletion(cluster, vms)
	if err != nil {
		return err
	}

	var sigBytes []byte
	for _, id := range cluster {
		sigBytes = results[id].Outputs["sig"].Bytes
	}
	var r, s secp256k1.ModNScalar
	r.SetByteSlice(sigBytes[:32])
	s.SetByteSlice(sigBytes[32:])
	verified := ecdsa.NewSignature(&r, &s).Verify(digest, deal.PublicKey)

	fmt.Fprintf(cmd.OutOrStdout(), "public_key %s\nsignature  %s\nverified   %t\n",
		hex.EncodeToString(deal.PublicKey.SerializeCompressed()), hex.EncodeToString(sigBytes), verified)
	return nil
}
