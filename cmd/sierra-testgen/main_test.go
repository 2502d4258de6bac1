package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/progress"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
	"github.com/FuzzingLabs/sierra-analyzer/internal/symex"
)

// isZeroProgram builds a single-parameter function that branches on
// felt252_is_zero(v0) and returns v0 on both paths, producing exactly
// two feasible paths.
func isZeroProgram() *sierra.Program {
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off:     0,
			Libfunc: "felt252_is_zero",
			Args:    []sierra.VarID{0},
			Branches: []sierra.Branch{
				{Target: 2, Results: nil},
				{Fallthrough: true, Results: []sierra.VarID{0}},
			},
		},
		&sierra.Return{Off: 1, Values: []sierra.VarID{0}},
		&sierra.Return{Off: 2, Values: []sierra.VarID{0}},
	}
	fn := &sierra.Function{Name: "pkg::branchy", Entry: 0, Params: []sierra.Param{{Var: 0, Type: "felt252"}}}
	return &sierra.Program{Statements: stmts, Functions: []*sierra.Function{fn}}
}

func TestGenerateSkipsIneligibleFunctions(t *testing.T) {
	prog := &sierra.Program{
		Statements: []sierra.Statement{&sierra.Return{Off: 0}},
		Functions:  []*sierra.Function{{Name: "pkg::noargs", Entry: 0}},
	}
	var buf strings.Builder
	generate(&buf, prog, flags{}, 3, progress.New(false))
	require.Empty(t, buf.String())
}

func TestGenerateReportsBothPathsOfIsZeroBranch(t *testing.T) {
	prog := isZeroProgram()
	var buf strings.Builder
	generate(&buf, prog, flags{}, 3, progress.New(false))
	out := buf.String()
	require.Contains(t, out, "pkg::branchy: 2 path(s)")
	require.Contains(t, out, "path 0:")
	require.Contains(t, out, "path 1:")
}

func TestGenerateRestrictsToRequestedFunction(t *testing.T) {
	prog := isZeroProgram()
	prog.Functions = append(prog.Functions, &sierra.Function{Name: "pkg::other", Entry: 0})
	var buf strings.Builder
	generate(&buf, prog, flags{function: "pkg::other"}, 3, progress.New(false))
	require.Empty(t, buf.String())
}

func TestFormatParamsMarksPartialModels(t *testing.T) {
	fn := &sierra.Function{Params: []sierra.Param{{Var: 0, Type: "felt252"}}}
	out := formatParams(fn, partialSample())
	require.Contains(t, out, "partial")
}

func TestClassifyLoadErrorDefaultsToInvalidArgs(t *testing.T) {
	require.Equal(t, exitInvalidArgs, classifyLoadError(errPlain{}))
}

type errPlain struct{}

func (errPlain) Error() string { return "boom" }

func partialSample() symex.Model {
	return symex.Model{Partial: true, Reason: &sierraerr.SymbolicError{Reason: sierraerr.LoopBoundReached}}
}
