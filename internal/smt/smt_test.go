package smt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/felt"
)

func TestEmptyFrameIsSat(t *testing.T) {
	s := New()
	status, err := s.CheckSat()
	require.NoError(t, err)
	require.Equal(t, Sat, status)
}

func TestEqualZeroPinsVariable(t *testing.T) {
	s := New()
	// v0 - 5 == 0  =>  v0 == 5
	s.Assert(Constraint{Term: Sub(VarTerm("v0"), ConstTerm(felt.FromInt64(5))), Rel: EqualZero})

	status, err := s.CheckSat()
	require.NoError(t, err)
	require.Equal(t, Sat, status)

	val, ok := s.GetValue("v0")
	require.True(t, ok)
	require.True(t, val.Equal(felt.FromInt64(5)))
}

func TestContradictionIsUnsat(t *testing.T) {
	s := New()
	five := ConstTerm(felt.FromInt64(5))
	s.Assert(Constraint{Term: Sub(VarTerm("v0"), five), Rel: EqualZero})
	s.Assert(Constraint{Term: Sub(VarTerm("v0"), ConstTerm(felt.FromInt64(6))), Rel: EqualZero})

	status, err := s.CheckSat()
	require.NoError(t, err)
	require.Equal(t, Unsat, status)
}

func TestPushPopScopesConstraints(t *testing.T) {
	s := New()
	s.Push()
	s.Assert(Constraint{Term: VarTerm("v0"), Rel: EqualZero})
	status, err := s.CheckSat()
	require.NoError(t, err)
	require.Equal(t, Sat, status)
	val, _ := s.GetValue("v0")
	require.True(t, val.IsZero())

	s.Pop()
	s.Assert(Constraint{Term: VarTerm("v0"), Rel: NotEqualZero})
	status, err = s.CheckSat()
	require.NoError(t, err)
	require.Equal(t, Sat, status)
	val, _ = s.GetValue("v0")
	require.False(t, val.IsZero())
}

func TestMulRejectsNonlinearProduct(t *testing.T) {
	_, ok := Mul(VarTerm("v0"), VarTerm("v1"))
	require.False(t, ok)

	product, ok := Mul(VarTerm("v0"), ConstTerm(felt.FromInt64(3)))
	require.True(t, ok)
	require.True(t, product.Coeffs["v0"].Equal(felt.FromInt64(3)))
}
