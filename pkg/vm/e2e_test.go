package vm_test

import (
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand/v2"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/compile"
	"github.com/luxfi/mpc/pkg/field"
	"github.com/luxfi/mpc/pkg/ir"
	"github.com/luxfi/mpc/pkg/party"
	"github.com/luxfi/mpc/pkg/preprocessing"
	"github.com/luxfi/mpc/pkg/shamir"
	"github.com/luxfi/mpc/pkg/vm"
	"github.com/luxfi/mpc/protocols/ecdsasign"
)

func TestVMEndToEnd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "VM End-to-End Suite")
}

func e2eCluster(n int) party.IDSlice {
	ids := make(party.IDSlice, n)
	for i := range ids {
		ids[i] = party.ID(rune('A' + i))
	}
	return ids.Sorted()
}

func secretInt() ir.ValueType  { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret} }
func publicInt() ir.ValueType  { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Public} }
func secretBool() ir.ValueType { return ir.ValueType{Kind: ir.Boolean, Visibility: ir.Secret} }

// shuffledRun drives every party's VM to completion the same way
// pkg/vm's own runToCompletion does, except messages within one wave are
// delivered in a randomized order: StoreBroadcastMessage's order-insensitivity
// (each message only ever sets one entry of a by-sender map) means the
// result must not depend on delivery order.
func shuffledRun(cluster party.IDSlice, vms map[party.ID]*vm.VM[field.Safe64]) (map[party.ID]*vm.Result, error) {
	pending := map[party.ID][]vm.OutboundMessage{}
	results := map[party.ID]*vm.Result{}

	for _, id := range cluster {
		yield, err := vms[id].Initialize()
		if err != nil {
			return nil, err
		}
		if yield.Result != nil {
			results[id] = yield.Result
		} else {
			pending[id] = append(pending[id], yield.Messages...)
		}
	}

	for len(results) < len(cluster) {
		type delivery struct {
			to  party.ID
			msg vm.PartyMessage
		}
		var wave []delivery
		for from, msgs := range pending {
			for _, m := range msgs {
				wave = append(wave, delivery{to: m.To, msg: vm.PartyMessage{From: from, Addr: m.Addr, Broadcast: m.Broadcast, Content: m.Content}})
			}
		}
		pending = map[party.ID][]vm.OutboundMessage{}
		mrand.Shuffle(len(wave), func(i, j int) { wave[i], wave[j] = wave[j], wave[i] })

		progressed := len(wave) > 0
		for _, d := range wave {
			yield, err := vms[d.to].Proceed(d.msg)
			if err != nil {
				return nil, err
			}
			if yield.Result != nil {
				results[d.to] = yield.Result
			} else {
				pending[d.to] = append(pending[d.to], yield.Messages...)
			}
		}
		if !progressed && len(results) < len(cluster) {
			return nil, errDeadlocked
		}
	}
	return results, nil
}

var errDeadlocked = errors.New("vm e2e: deadlocked before every party finished")

func dealSecret(cluster party.IDSlice, threshold int, v field.Element[field.Safe64]) map[party.ID]shamir.Share[field.Safe64] {
	shares, err := shamir.Deal[field.Safe64](rand.Reader, v, threshold, cluster)
	Expect(err).NotTo(HaveOccurred())
	return shares
}

// dealCompareTuples deals the bit shares of a fresh MaskBits-bit random
// mask for every party, the material a real preprocessing producer fills
// the Compare pool with.
func dealCompareTuples(cluster party.IDSlice, threshold int) map[party.ID]preprocessing.CompareTuple[field.Safe64] {
	mask, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), preprocessing.MaskBits))
	Expect(err).NotTo(HaveOccurred())

	perParty := make(map[party.ID][]field.Element[field.Safe64], len(cluster))
	for _, id := range cluster {
		perParty[id] = make([]field.Element[field.Safe64], preprocessing.MaskBits)
	}
	for i := 0; i < preprocessing.MaskBits; i++ {
		shares := dealSecret(cluster, threshold, field.FromUint64[field.Safe64](uint64(mask.Bit(i))))
		for _, id := range cluster {
			perParty[id][i] = shares[id].Y
		}
	}

	out := make(map[party.ID]preprocessing.CompareTuple[field.Safe64], len(cluster))
	for _, id := range cluster {
		out[id] = preprocessing.CompareTuple[field.Safe64]{RBits: perParty[id]}
	}
	return out
}

func newVMs(cluster party.IDSlice, threshold int, prog *compile.Program, inputs map[party.ID]map[string]vm.Value[field.Safe64], bundles map[party.ID]*preprocessing.Bundle[field.Safe64]) map[party.ID]*vm.VM[field.Safe64] {
	vms := map[party.ID]*vm.VM[field.Safe64]{}
	for _, id := range cluster {
		bundle := bundles[id]
		if bundle == nil {
			bundle = preprocessing.NewBundle[field.Safe64]()
		}
		theVM, err := vm.New[field.Safe64]("e2e-session", cluster, id, threshold, prog, bundle, inputs[id])
		Expect(err).NotTo(HaveOccurred())
		vms[id] = theVM
	}
	return vms
}

var _ = Describe("VM end-to-end scenarios", func() {
	var cluster party.IDSlice
	var threshold int

	BeforeEach(func() {
		cluster = e2eCluster(3)
		threshold = 1
	})

	It("reveals a single input unchanged (reveal-only roundtrip)", func() {
		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 1, Kind: compile.KindReveal, Operands: []bytecode.Address{0}, Result: publicInt(), Line: compile.Online},
			},
			Inputs:  map[string]bytecode.Address{"a": 0},
			Outputs: map[string]bytecode.Address{"out": 1},
		}
		a := field.FromUint64[field.Safe64](99)
		sharesA := dealSecret(cluster, threshold, a)

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		for _, id := range cluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{"a": vm.SecretValue[field.Safe64](sharesA[id])}
		}
		vms := newVMs(cluster, threshold, prog, inputs, nil)

		results, err := shuffledRun(cluster, vms)
		Expect(err).NotTo(HaveOccurred())
		for _, id := range cluster {
			out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Equal(a)).To(BeTrue())
		}
	})

	It("computes a - b via KindSubtractionLocal, order sensitive", func() {
		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 1, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 2, Kind: compile.KindSubtractionLocal, Operands: []bytecode.Address{0, 1}, Result: secretInt(), Line: compile.Local},
				{Addr: 3, Kind: compile.KindReveal, Operands: []bytecode.Address{2}, Result: publicInt(), Line: compile.Online},
			},
			Inputs:  map[string]bytecode.Address{"a": 0, "b": 1},
			Outputs: map[string]bytecode.Address{"out": 3},
		}
		a := field.FromUint64[field.Safe64](10)
		b := field.FromUint64[field.Safe64](3)
		sharesA := dealSecret(cluster, threshold, a)
		sharesB := dealSecret(cluster, threshold, b)

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		for _, id := range cluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{
				"a": vm.SecretValue[field.Safe64](sharesA[id]),
				"b": vm.SecretValue[field.Safe64](sharesB[id]),
			}
		}
		vms := newVMs(cluster, threshold, prog, inputs, nil)

		results, err := shuffledRun(cluster, vms)
		Expect(err).NotTo(HaveOccurred())
		for _, id := range cluster {
			out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Equal(field.FromUint64[field.Safe64](7))).To(BeTrue())
		}
	})

	It("multiplies two shares with no preprocessing consumed", func() {
		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 1, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 2, Kind: compile.KindMultiplicationShares, Operands: []bytecode.Address{0, 1}, Result: secretInt(), Line: compile.Online},
				{Addr: 3, Kind: compile.KindReveal, Operands: []bytecode.Address{2}, Result: publicInt(), Line: compile.Online},
			},
			Inputs:  map[string]bytecode.Address{"a": 0, "b": 1},
			Outputs: map[string]bytecode.Address{"out": 3},
		}
		a := field.FromUint64[field.Safe64](6)
		b := field.FromUint64[field.Safe64](7)
		sharesA := dealSecret(cluster, threshold, a)
		sharesB := dealSecret(cluster, threshold, b)

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		for _, id := range cluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{
				"a": vm.SecretValue[field.Safe64](sharesA[id]),
				"b": vm.SecretValue[field.Safe64](sharesB[id]),
			}
		}
		// Empty bundles: the MULT round extracts its masking randomness
		// from the cluster itself.
		vms := newVMs(cluster, threshold, prog, inputs, nil)

		results, err := shuffledRun(cluster, vms)
		Expect(err).NotTo(HaveOccurred())
		for _, id := range cluster {
			out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Equal(field.FromUint64[field.Safe64](42))).To(BeTrue())
		}
	})

	It("divides by a secret divisor when it evenly divides the dividend", func() {
		// division.Start's secret-divisor path (DESIGN.md Open Questions #4)
		// computes the exact field quotient, correct only when the divisor
		// evenly divides the dividend; 20/5 is such a case. Cluster size and
		// threshold match protocols/division/modulo_test.go's
		// dealDivisionTuple precedent for this same tuple shape.
		bigCluster := cluster
		bigThreshold := threshold

		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 1, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 2, Kind: compile.KindDivisionIntegerSecretDivisor, Operands: []bytecode.Address{0, 1}, Result: secretInt(), Line: compile.Online, Requirements: compile.Requirements{compile.DivisionIntegerSecret: 1}},
				{Addr: 3, Kind: compile.KindReveal, Operands: []bytecode.Address{2}, Result: publicInt(), Line: compile.Online},
			},
			Inputs:  map[string]bytecode.Address{"a": 0, "b": 1},
			Outputs: map[string]bytecode.Address{"out": 3},
		}
		dividend := field.FromUint64[field.Safe64](20)
		divisor := field.FromUint64[field.Safe64](5)
		sharesDividend := dealSecret(bigCluster, bigThreshold, dividend)
		sharesDivisor := dealSecret(bigCluster, bigThreshold, divisor)

		r := field.FromUint64[field.Safe64](13)
		sharesR := dealSecret(bigCluster, bigThreshold, r)
		sharesRTwoT := dealSecret(bigCluster, 2*bigThreshold, r)
		rInv, err := r.Inverse()
		Expect(err).NotTo(HaveOccurred())
		sharesRInv := dealSecret(bigCluster, bigThreshold, rInv)

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		bundles := map[party.ID]*preprocessing.Bundle[field.Safe64]{}
		for _, id := range bigCluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{
				"a": vm.SecretValue[field.Safe64](sharesDividend[id]),
				"b": vm.SecretValue[field.Safe64](sharesDivisor[id]),
			}
			bundle := preprocessing.NewBundle[field.Safe64]()
			bundle.AddDivision(preprocessing.DivisionTuple[field.Safe64]{
				R: sharesR[id].Y, RTwoT: sharesRTwoT[id].Y, RInv: sharesRInv[id].Y,
			})
			bundles[id] = bundle
		}
		vms := newVMs(bigCluster, bigThreshold, prog, inputs, bundles)

		results, err := shuffledRun(bigCluster, vms)
		Expect(err).NotTo(HaveOccurred())
		for _, id := range bigCluster {
			out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Equal(field.FromUint64[field.Safe64](4))).To(BeTrue())
		}
	})

	It("pops a preprocessed random share and opens one consistent value", func() {
		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindRandom, Result: secretInt(), Line: compile.Local, Requirements: compile.Requirements{compile.RandomInteger: 1}},
				{Addr: 1, Kind: compile.KindReveal, Operands: []bytecode.Address{0}, Result: publicInt(), Line: compile.Online},
			},
			Inputs:  map[string]bytecode.Address{},
			Outputs: map[string]bytecode.Address{"out": 1},
		}
		// The RandomInteger pool stock a producer (protocols/random, driven
		// by the preprocessing scheduler) would have filled ahead of time.
		r := field.FromUint64[field.Safe64](271828)
		sharesR := dealSecret(cluster, threshold, r)

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		bundles := map[party.ID]*preprocessing.Bundle[field.Safe64]{}
		for _, id := range cluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{}
			bundle := preprocessing.NewBundle[field.Safe64]()
			bundle.AddRandomIntegers(preprocessing.RandomIntegerShare[field.Safe64]{Share: sharesR[id].Y})
			bundles[id] = bundle
		}
		vms := newVMs(cluster, threshold, prog, inputs, bundles)

		results, err := shuffledRun(cluster, vms)
		Expect(err).NotTo(HaveOccurred())
		for _, id := range cluster {
			out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Equal(r)).To(BeTrue(), "every party must open the dealt pool value")
		}
	})

	It("signs a public message with ECDSA over dealt aux material", func() {
		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindNew, Result: publicInt(), Line: compile.Local},
				{Addr: 1, Kind: compile.KindEcdsaSign, Operands: []bytecode.Address{0}, Result: publicInt(), Line: compile.Online, Requirements: compile.Requirements{compile.EcdsaAuxInfo: 1}},
			},
			Inputs:  map[string]bytecode.Address{"m": 0},
			Outputs: map[string]bytecode.Address{"sig": 1},
		}
		m := field.FromUint64[field.Safe64](12345)
		deal, err := ecdsasign.DealAux(cluster, threshold)
		Expect(err).NotTo(HaveOccurred())

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		bundles := map[party.ID]*preprocessing.Bundle[field.Safe64]{}
		for _, id := range cluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{"m": vm.PublicValue[field.Safe64](m)}
			bundle := preprocessing.NewBundle[field.Safe64]()
			bundle.AddEcdsaAux(deal.Infos[id])
			bundles[id] = bundle
		}
		vms := newVMs(cluster, threshold, prog, inputs, bundles)

		results, err := shuffledRun(cluster, vms)
		Expect(err).NotTo(HaveOccurred())

		digest := field.Encode[field.Safe64](m).Bytes
		var first []byte
		for i, id := range cluster {
			sig := results[id].Outputs["sig"]
			Expect(sig.Tag).To(Equal(field.TagOpaque))
			Expect(sig.Bytes).To(HaveLen(64))
			if i == 0 {
				first = sig.Bytes
			} else {
				Expect(sig.Bytes).To(Equal(first), "every party must assemble the identical signature")
			}

			var r, s secp256k1.ModNScalar
			r.SetByteSlice(sig.Bytes[:32])
			s.SetByteSlice(sig.Bytes[32:])
			Expect(ecdsa.NewSignature(&r, &s).Verify(digest, deal.PublicKey)).To(BeTrue())
		}
	})

	It("selects the true branch of an if-else with secret condition and public branches", func() {
		prog := &compile.Program{
			Protocols: []compile.Protocol{
				{Addr: 0, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 1, Kind: compile.KindNew, Result: secretInt(), Line: compile.Local},
				{Addr: 2, Kind: compile.KindSubtractionLocal, Operands: []bytecode.Address{0, 1}, Result: secretInt(), Line: compile.Local},
				{Addr: 3, Kind: compile.KindLessThan, Operands: []bytecode.Address{2}, Result: secretBool(), Line: compile.Online, Requirements: compile.Requirements{compile.Compare: 1}},
				{Addr: 4, Kind: compile.KindNew, Result: publicInt(), Line: compile.Local, Literal: literal(1)},
				{Addr: 5, Kind: compile.KindNew, Result: publicInt(), Line: compile.Local, Literal: literal(0)},
				{Addr: 6, Kind: compile.KindIfElsePublicBranches, Operands: []bytecode.Address{3, 4, 5}, Result: secretInt(), Line: compile.Local},
				{Addr: 7, Kind: compile.KindReveal, Operands: []bytecode.Address{6}, Result: publicInt(), Line: compile.Online},
			},
			Inputs:  map[string]bytecode.Address{"x": 0, "y": 1},
			Outputs: map[string]bytecode.Address{"out": 7},
		}
		x := field.FromUint64[field.Safe64](3)
		y := field.FromUint64[field.Safe64](4)
		sharesX := dealSecret(cluster, threshold, x)
		sharesY := dealSecret(cluster, threshold, y)

		// A genuinely random mask, dealt bit by bit the way a real
		// preprocessing producer fills the Compare pool.
		tuples := dealCompareTuples(cluster, threshold)

		inputs := map[party.ID]map[string]vm.Value[field.Safe64]{}
		bundles := map[party.ID]*preprocessing.Bundle[field.Safe64]{}
		for _, id := range cluster {
			inputs[id] = map[string]vm.Value[field.Safe64]{
				"x": vm.SecretValue[field.Safe64](sharesX[id]),
				"y": vm.SecretValue[field.Safe64](sharesY[id]),
			}
			bundle := preprocessing.NewBundle[field.Safe64]()
			bundle.AddCompare(tuples[id])
			bundles[id] = bundle
		}
		vms := newVMs(cluster, threshold, prog, inputs, bundles)

		results, err := shuffledRun(cluster, vms)
		Expect(err).NotTo(HaveOccurred())
		for _, id := range cluster {
			out, err := field.Decode[field.Safe64](results[id].Outputs["out"])
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Equal(field.FromUint64[field.Safe64](1))).To(BeTrue())
		}
	})
})

func literal(v uint64) *ir.Literal {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return &ir.Literal{Bytes: b}
}
