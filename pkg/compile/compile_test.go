package compile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mpc/pkg/bytecode"
	"github.com/luxfi/mpc/pkg/ir"
)

func secretInt() ir.ValueType  { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Secret} }
func publicInt() ir.ValueType  { return ir.ValueType{Kind: ir.Integer, Visibility: ir.Public} }
func publicBool() ir.ValueType { return ir.ValueType{Kind: ir.Boolean, Visibility: ir.Public} }

// twoOperandProgram builds a tiny bytecode program with two Load operands (of the
// given types) and one more operation of kind consuming them, for exercising
// dispatch in isolation.
func twoOperandProgram(kind ir.OpKind, lhs, rhs ir.ValueType) *bytecode.Program {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: lhs, Kind: ir.Load},
			{Addr: 1, Result: rhs, Kind: ir.Load},
			{Addr: 2, Result: lhs, Kind: kind, Operands: []bytecode.Address{0, 1}},
		},
		Inputs:  map[string]bytecode.Address{"a": 0, "b": 1},
		Outputs: map[string]bytecode.Address{"out": 2},
	}
	return prog
}

func TestMultiplicationDispatch(t *testing.T) {
	cases := []struct {
		name     string
		lhs, rhs ir.ValueType
		want     Kind
		line     Line
	}{
		{"both public", publicInt(), publicInt(), KindMultiplicationPublic, Local},
		{"share public", secretInt(), publicInt(), KindMultiplicationSharePublic, Local},
		{"both shares", secretInt(), secretInt(), KindMultiplicationShares, Online},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Compile(twoOperandProgram(ir.Multiplication, tc.lhs, tc.rhs))
			require.NoError(t, err)
			proto, ok := out.ProtocolAt(2)
			require.True(t, ok)
			require.Equal(t, tc.want, proto.Kind)
			require.Equal(t, tc.line, proto.Line)
			require.Empty(t, proto.Requirements, "multiplication consumes no preprocessing")
		})
	}
}

func TestSubtractionDispatchesToItsOwnKindRegardlessOfVisibility(t *testing.T) {
	// Subtraction shares Addition's "local linear combination regardless of
	// operand visibility" line, but must compile to a distinct Kind: the VM
	// needs to know which operand order to subtract in, something Addition's
	// commutative KindAdditionLocal dispatch cannot express.
	cases := []struct {
		name     string
		lhs, rhs ir.ValueType
	}{
		{"both public", publicInt(), publicInt()},
		{"both secret", secretInt(), secretInt()},
		{"secret minus public", secretInt(), publicInt()},
		{"public minus secret", publicInt(), secretInt()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Compile(twoOperandProgram(ir.Subtraction, tc.lhs, tc.rhs))
			require.NoError(t, err)
			proto, ok := out.ProtocolAt(2)
			require.True(t, ok)
			require.Equal(t, KindSubtractionLocal, proto.Kind)
			require.Equal(t, Local, proto.Line)
			require.NotEqual(t, KindAdditionLocal, proto.Kind)
		})
	}
}

func TestDivisionDispatchMirrorsModulo(t *testing.T) {
	cases := []struct {
		name           string
		lhs, rhs       ir.ValueType
		wantDiv        Kind
		wantMod        Kind
		wantReq        ElementKind
	}{
		{"both public", publicInt(), publicInt(), KindDivisionIntegerPublic, KindModuloIntegerPublic, 0},
		{"secret dividend public divisor", secretInt(), publicInt(), KindDivisionIntegerSecretDividendPublicDivisor, KindModuloSecretDividendPublicDivisor, Modulo},
		{"secret divisor", publicInt(), secretInt(), KindDivisionIntegerSecretDivisor, KindModuloSecretDivisor, DivisionIntegerSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			divOut, err := Compile(twoOperandProgram(ir.Division, tc.lhs, tc.rhs))
			require.NoError(t, err)
			divProto, _ := divOut.ProtocolAt(2)
			require.Equal(t, tc.wantDiv, divProto.Kind)

			modOut, err := Compile(twoOperandProgram(ir.Modulo, tc.lhs, tc.rhs))
			require.NoError(t, err)
			modProto, _ := modOut.ProtocolAt(2)
			require.Equal(t, tc.wantMod, modProto.Kind)

			if tc.wantReq != 0 || tc.name != "both public" {
				require.Equal(t, 1, divProto.Requirements[tc.wantReq])
			}
		})
	}
}

func TestEqualsDispatch(t *testing.T) {
	out, err := Compile(twoOperandProgram(ir.Equals, publicInt(), publicInt()))
	require.NoError(t, err)
	proto, _ := out.ProtocolAt(2)
	require.Equal(t, KindEqualsPublic, proto.Kind)
	require.Equal(t, Local, proto.Line)

	out, err = Compile(twoOperandProgram(ir.Equals, secretInt(), publicInt()))
	require.NoError(t, err)
	proto, _ = out.ProtocolAt(2)
	require.Equal(t, KindEqualsSecret, proto.Kind)
	require.Equal(t, Online, proto.Line)
	require.Equal(t, 1, proto.Requirements[PrivateOutputEqualityElement])
}

func TestRandomRequirementsMatchResultKind(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: publicBool(), Kind: ir.Random},
		},
	}
	out, err := Compile(prog)
	require.NoError(t, err)
	proto, _ := out.ProtocolAt(0)
	require.Equal(t, Local, proto.Line, "Random is a pool pop, not a round")
	require.Equal(t, 1, proto.Requirements[RandomBoolean])
	require.Equal(t, 0, proto.Requirements[RandomInteger])
}

func TestSigningOperationsConsumeAuxMaterial(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: publicInt(), Kind: ir.Load},
			{Addr: 1, Result: publicInt(), Kind: ir.EcdsaSign, Operands: []bytecode.Address{0}},
			{Addr: 2, Result: publicInt(), Kind: ir.EddsaSign, Operands: []bytecode.Address{0}},
			{Addr: 3, Result: publicInt(), Kind: ir.PublicKeyDerive},
		},
	}
	out, err := Compile(prog)
	require.NoError(t, err)

	ecdsaProto, _ := out.ProtocolAt(1)
	require.Equal(t, Online, ecdsaProto.Line)
	require.Equal(t, 1, ecdsaProto.Requirements[EcdsaAuxInfo])

	eddsaProto, _ := out.ProtocolAt(2)
	require.Equal(t, Online, eddsaProto.Line)
	require.Equal(t, 1, eddsaProto.Requirements[EcdsaAuxInfo])

	deriveProto, _ := out.ProtocolAt(3)
	require.Equal(t, Local, deriveProto.Line)
	require.Equal(t, 1, deriveProto.Requirements[EcdsaAuxInfo])

	require.Equal(t, 3, out.TotalRequirements()[EcdsaAuxInfo])
}

func TestTotalRequirementsAccumulates(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: secretInt(), Kind: ir.Load},
			{Addr: 1, Result: publicInt(), Kind: ir.Load},
			{Addr: 2, Result: secretInt(), Kind: ir.Division, Operands: []bytecode.Address{0, 1}},
			{Addr: 3, Result: publicBool(), Kind: ir.LessThan, Operands: []bytecode.Address{0, 1}},
		},
	}
	out, err := Compile(prog)
	require.NoError(t, err)
	totals := out.TotalRequirements()
	require.Equal(t, 1, totals[Modulo])
	require.Equal(t, 1, totals[Compare])
}

func TestUnsupportedOperationReturnsSentinel(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: publicInt(), Kind: ir.OpKind(999)},
		},
	}
	_, err := Compile(prog)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOperationNotSupported))
}

func literalBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func TestPowerAcceptsLiteralExponent(t *testing.T) {
	for _, exponent := range []uint64{0, 1, 2, 3, 5, 7} {
		prog := &bytecode.Program{
			Ops: []bytecode.Operation{
				{Addr: 0, Result: secretInt(), Kind: ir.Load},
				{Addr: 1, Result: publicInt(), Kind: ir.LiteralRef, Literal: &ir.Literal{Bytes: literalBytes(exponent)}},
				{Addr: 2, Result: secretInt(), Kind: ir.Power, Operands: []bytecode.Address{0, 1}},
			},
		}
		out, err := Compile(prog)
		require.NoError(t, err, "exponent %d", exponent)
		proto, _ := out.ProtocolAt(2)
		require.Equal(t, KindPower, proto.Kind)
		require.Equal(t, Online, proto.Line)
		require.Empty(t, proto.Requirements, "exponent %d: the chained MULTs consume no preprocessing", exponent)
	}
}

func TestPowerRejectsNonLiteralExponent(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: secretInt(), Kind: ir.Load},
			{Addr: 1, Result: secretInt(), Kind: ir.Load},
			{Addr: 2, Result: secretInt(), Kind: ir.Power, Operands: []bytecode.Address{0, 1}},
		},
	}
	_, err := Compile(prog)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOperationNotSupported))
}

func TestInnerProductCompilesToOnlineKind(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: secretInt(), Kind: ir.Load},
			{Addr: 1, Result: secretInt(), Kind: ir.Load},
			{Addr: 2, Result: secretInt(), Kind: ir.Load},
			{Addr: 3, Result: secretInt(), Kind: ir.Load},
			{Addr: 4, Result: secretInt(), Kind: ir.InnerProduct, Operands: []bytecode.Address{0, 1, 2, 3}},
		},
	}
	out, err := Compile(prog)
	require.NoError(t, err)
	proto, _ := out.ProtocolAt(4)
	require.Equal(t, KindInnerProduct, proto.Kind)
	require.Equal(t, Online, proto.Line)
	require.Empty(t, proto.Requirements)
}

func TestInnerProductRejectsOddOperandCount(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: secretInt(), Kind: ir.Load},
			{Addr: 1, Result: secretInt(), Kind: ir.Load},
			{Addr: 2, Result: secretInt(), Kind: ir.Load},
			{Addr: 3, Result: secretInt(), Kind: ir.InnerProduct, Operands: []bytecode.Address{0, 1, 2}},
		},
	}
	_, err := Compile(prog)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOperationNotSupported))
}

func TestIfElseOnlineNeedsNoPreprocessing(t *testing.T) {
	prog := &bytecode.Program{
		Ops: []bytecode.Operation{
			{Addr: 0, Result: secretInt(), Kind: ir.Load},
			{Addr: 1, Result: secretInt(), Kind: ir.Load},
			{Addr: 2, Result: secretInt(), Kind: ir.Load},
			{Addr: 3, Result: secretInt(), Kind: ir.IfElse, Operands: []bytecode.Address{0, 1, 2}},
		},
	}
	out, err := Compile(prog)
	require.NoError(t, err)
	proto, _ := out.ProtocolAt(3)
	require.Equal(t, KindIfElseOnline, proto.Kind)
	require.Empty(t, proto.Requirements)
}

func TestModuloSecretDivisorRequiresDivisionElement(t *testing.T) {
	out, err := Compile(twoOperandProgram(ir.Modulo, publicInt(), secretInt()))
	require.NoError(t, err)
	proto, _ := out.ProtocolAt(2)
	require.Equal(t, KindModuloSecretDivisor, proto.Kind)
	require.Equal(t, Requirements{DivisionIntegerSecret: 1}, proto.Requirements)
}
