package callgraph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

// fibProgram: pkg::fib at entry 0 calls itself via function_call<user@pkg::fib>,
// and pkg::main at entry 2 calls pkg::fib plus a core-library libfunc.
func fibProgram() *sierra.Program {
	fib := &sierra.Function{Name: "pkg::fib", Entry: 0}
	main := &sierra.Function{Name: "pkg::main", Entry: 2}
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off: 0, Libfunc: "call_fib",
			Branches: []sierra.Branch{{Fallthrough: true}},
		},
		&sierra.Return{Off: 1},
		&sierra.Invocation{
			Off: 2, Libfunc: "call_fib",
			Branches: []sierra.Branch{{Fallthrough: true}},
		},
		&sierra.Invocation{
			Off: 3, Libfunc: "hash_call",
			Branches: []sierra.Branch{{Fallthrough: true}},
		},
		&sierra.Return{Off: 4},
	}
	return &sierra.Program{
		Libfuncs: []sierra.LibfuncDeclaration{
			{ID: "call_fib", LongID: "function_call<user@pkg::fib>"},
			{ID: "hash_call", LongID: "function_call<core::pedersen>"},
		},
		Statements: stmts,
		Functions:  []*sierra.Function{fib, main},
	}
}

func TestBuildUserCallEdges(t *testing.T) {
	prog := fibProgram()
	cg := Build(prog, Options{})

	require.ElementsMatch(t, []string{"pkg::fib"}, cg.CalleesOf("pkg::main"))
	require.True(t, Recursive(cg, "pkg::fib"))
	require.False(t, Recursive(cg, "pkg::main"))
}

func TestBuildIncludesLibraryCallsWhenRequested(t *testing.T) {
	prog := fibProgram()
	cg := Build(prog, Options{IncludeLibraryCalls: true})
	require.Contains(t, cg.CalleesOf("pkg::main"), "lib::core::pedersen")
}

func TestSubgraphRestrictsToReachable(t *testing.T) {
	prog := fibProgram()
	cg := Build(prog, Options{})
	sub := Subgraph(cg, "pkg::fib")
	require.Contains(t, sub.Kinds, "pkg::fib")
	require.NotContains(t, sub.Kinds, "pkg::main")
}

func TestWriteDOT(t *testing.T) {
	prog := fibProgram()
	cg := Build(prog, Options{})
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, cg))
	out := buf.String()
	require.Contains(t, out, "digraph callgraph {")
	require.Contains(t, out, `"pkg::fib" -> "pkg::fib"`)
}
