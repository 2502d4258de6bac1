package cfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

// branchingProgram builds a tiny 3-statement function body:
//
//	0: felt252_is_zero(v0) { 2() fallthrough(v0) }
//	1: felt252_add(v0, v0) -> (v1)
//	2: return(v0)          [fallthrough target lands here too via stmt 1's successor]
//
// laid out so block leaders are {0,1,2}.
func branchingProgram(t *testing.T) (*sierra.Program, *sierra.Function) {
	t.Helper()
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
		&sierra.Invocation{
			Off:     1,
			Libfunc: "felt252_add",
			Args:    []sierra.VarID{0, 0},
			Branches: []sierra.Branch{
				{Fallthrough: true, Results: []sierra.VarID{1}},
			},
		},
		&sierra.Return{Off: 2, Values: []sierra.VarID{0}},
	}
	fn := &sierra.Function{Name: "pkg::branchy", Entry: 0, Params: []sierra.Param{{Var: 0, Type: "felt252"}}}
	prog := &sierra.Program{Statements: stmts, Functions: []*sierra.Function{fn}}
	return prog, fn
}

func TestBuildLeadersAndEdges(t *testing.T) {
	prog, fn := branchingProgram(t)
	g, err := Build(prog, fn, 0, 3)
	require.NoError(t, err)
	require.Same(t, g, fn.CFG)

	require.Len(t, g.Blocks, 3)
	require.Equal(t, []sierra.Offset{0}, g.Blocks[0].Stmts)
	require.Equal(t, []sierra.Offset{1}, g.Blocks[1].Stmts)
	require.Equal(t, []sierra.Offset{2}, g.Blocks[2].Stmts)

	require.Len(t, g.Blocks[0].Succs, 2)
	require.Equal(t, 2, g.Blocks[0].Succs[0].Target)
	require.Equal(t, sierra.BranchEdge, g.Blocks[0].Succs[0].Kind)
	require.Equal(t, 1, g.Blocks[0].Succs[1].Target)
	require.Equal(t, sierra.Fallthrough, g.Blocks[0].Succs[1].Kind)

	require.Len(t, g.Blocks[1].Succs, 1)
	require.Equal(t, 2, g.Blocks[1].Succs[0].Target)

	require.Empty(t, g.Blocks[2].Succs)
}

func TestBuildRejectsOutOfRangeFunction(t *testing.T) {
	prog, fn := branchingProgram(t)
	_, err := Build(prog, fn, 0, 0)
	require.Error(t, err)

	_, err = Build(prog, fn, 0, 10)
	require.Error(t, err)
}

func TestPruneDropsUnreachableBlocks(t *testing.T) {
	prog, fn := branchingProgram(t)
	g, err := Build(prog, fn, 0, 3)
	require.NoError(t, err)

	// Synthesize an unreachable parse artefact block with no predecessors.
	g.Blocks = append(g.Blocks, &sierra.BasicBlock{Index: 3, Start: 3, End: 3})
	Prune(g)

	require.Len(t, g.Blocks, 3)
	for i, b := range g.Blocks {
		require.Equal(t, i, b.Index)
	}
}

func TestWriteDOTIncludesBlocksAndEdges(t *testing.T) {
	prog, fn := branchingProgram(t)
	g, err := Build(prog, fn, 0, 3)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, WriteDOT(&buf, g))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "digraph pkg__branchy {\n"))
	require.Contains(t, out, "0 -> 2")
	require.Contains(t, out, "0 -> 1")
}
