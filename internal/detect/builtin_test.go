package detect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/config"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

// taintedProgram builds:
//
//	func pkg::use(v0: felt252) -> (felt252) {
//	  v1 = hash_call(v0)        // library call, tainted by param v0
//	  v2 = v0 + v0              // unchecked felt252_add, tainted by param v0
//	  return (v2)
//	}
func taintedProgram() *sierra.Program {
	fn := &sierra.Function{
		Name:   "pkg::use",
		Entry:  0,
		Params: []sierra.Param{{Var: 0, Type: "felt252"}},
		RetTypes: []string{"felt252"},
	}
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off: 0, Libfunc: "hash_call", Args: []sierra.VarID{0},
			Branches: []sierra.Branch{{Fallthrough: true, Results: []sierra.VarID{1}}},
		},
		&sierra.Invocation{
			Off: 1, Libfunc: "add", Args: []sierra.VarID{0, 0},
			Branches: []sierra.Branch{{Fallthrough: true, Results: []sierra.VarID{2}}},
		},
		&sierra.Return{Off: 2, Values: []sierra.VarID{2}},
	}
	return &sierra.Program{
		Libfuncs: []sierra.LibfuncDeclaration{
			{ID: "hash_call", LongID: "function_call<core::pedersen>"},
			{ID: "add", LongID: "felt252_add"},
		},
		Statements: stmts,
		Functions:  []*sierra.Function{fn},
	}
}

func TestFunctionsDetectorListsSignature(t *testing.T) {
	prog := taintedProgram()
	rep, err := (functionsDetector{}).Run(&Context{Prog: prog})
	require.NoError(t, err)
	require.Contains(t, rep.Text, "pkg::use(v0: felt252) -> (felt252)")
}

func TestStatisticsDetectorCounts(t *testing.T) {
	prog := taintedProgram()
	rep, err := (statisticsDetector{}).Run(&Context{Prog: prog})
	require.NoError(t, err)
	require.Contains(t, rep.Text, "statements: 3")
	require.Contains(t, rep.Text, "functions: 1")
	require.Contains(t, rep.Text, "distinct libfuncs: 2")
}

func TestStringsDetectorRecoversAsciiConstants(t *testing.T) {
	fn := &sierra.Function{Name: "pkg::hello", Entry: 0}
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off: 0, Libfunc: "mkconst",
			Branches: []sierra.Branch{{Fallthrough: true, Results: []sierra.VarID{0}}},
		},
		&sierra.Return{Off: 1, Values: []sierra.VarID{0}},
	}
	prog := &sierra.Program{
		Libfuncs: []sierra.LibfuncDeclaration{
			{ID: "mkconst", LongID: "const_as_immediate<felt252, 72>"}, // ascii 'H'
		},
		Statements: stmts,
		Functions:  []*sierra.Function{fn},
	}
	rep, err := (stringsDetector{}).Run(&Context{Prog: prog})
	require.NoError(t, err)
	require.Contains(t, rep.Text, `"H"`)
	require.Len(t, rep.Findings, 1)
}

func TestControlledLibraryCallDetectorFlagsParamTaint(t *testing.T) {
	prog := taintedProgram()
	rep, err := (controlledLibraryCallDetector{}).Run(&Context{Prog: prog})
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	require.Equal(t, "pkg::use", rep.Findings[0].Function)
}

func TestFeltOverflowDetectorFlagsUnsanitizedArithmetic(t *testing.T) {
	prog := taintedProgram()
	rep, err := (feltOverflowDetector{}).Run(&Context{Prog: prog, Config: config.Default()})
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	require.Contains(t, rep.Findings[0].Message, "felt252_add")
}

func TestFeltOverflowDetectorRespectsSanitizer(t *testing.T) {
	fn := &sierra.Function{
		Name:   "pkg::checked",
		Entry:  0,
		Params: []sierra.Param{{Var: 0, Type: "felt252"}},
	}
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off: 0, Libfunc: "rc", Args: []sierra.VarID{0},
			Branches: []sierra.Branch{{Fallthrough: true, Results: []sierra.VarID{1}}},
		},
		&sierra.Invocation{
			Off: 1, Libfunc: "add", Args: []sierra.VarID{1, 1},
			Branches: []sierra.Branch{{Fallthrough: true, Results: []sierra.VarID{2}}},
		},
		&sierra.Return{Off: 2, Values: []sierra.VarID{2}},
	}
	prog := &sierra.Program{
		Libfuncs: []sierra.LibfuncDeclaration{
			{ID: "rc", LongID: "range_check"},
			{ID: "add", LongID: "felt252_add"},
		},
		Statements: stmts,
		Functions:  []*sierra.Function{fn},
	}
	rep, err := (feltOverflowDetector{}).Run(&Context{Prog: prog, Config: config.Default()})
	require.NoError(t, err)
	require.Empty(t, rep.Findings)
}

// isZeroProgram: func pkg::check(v0: felt252) -> (felt252) branches on
// felt252_is_zero(v0), returning v0 on both paths.
func isZeroProgram() *sierra.Program {
	fn := &sierra.Function{
		Name:    "pkg::check",
		Entry:   0,
		Params:  []sierra.Param{{Var: 0, Type: "felt252"}},
		RetTypes: []string{"felt252"},
	}
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off: 0, Libfunc: "is_zero", Args: []sierra.VarID{0},
			Branches: []sierra.Branch{
				{Target: 1, Results: nil},
				{Target: 2, Fallthrough: false, Results: nil},
			},
		},
		&sierra.Return{Off: 1, Values: []sierra.VarID{0}},
		&sierra.Return{Off: 2, Values: []sierra.VarID{0}},
	}
	return &sierra.Program{
		Libfuncs: []sierra.LibfuncDeclaration{
			{ID: "is_zero", LongID: "felt252_is_zero"},
		},
		Statements: stmts,
		Functions:  []*sierra.Function{fn},
	}
}

func TestTestsDetectorRunsEligibleFunctions(t *testing.T) {
	prog := isZeroProgram()
	rep, err := (testsDetector{}).Run(&Context{Prog: prog, Config: config.Default(), SymbolicBound: 3})
	require.NoError(t, err)
	require.Contains(t, rep.Text, "pkg::check")
}
