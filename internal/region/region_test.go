package region

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

// linear: 0 -> 1 -> 2 (straight-line, no branches).
func linearCFG() *sierra.ControlFlowGraph {
	b0 := &sierra.BasicBlock{Index: 0, Succs: []sierra.CFGEdge{{Target: 1}}}
	b1 := &sierra.BasicBlock{Index: 1, Succs: []sierra.CFGEdge{{Target: 2}}}
	b2 := &sierra.BasicBlock{Index: 2}
	return &sierra.ControlFlowGraph{Entry: 0, Blocks: []*sierra.BasicBlock{b0, b1, b2}}
}

// diamond: 0 branches to {1,2}, both merge at 3.
func diamondCFG() *sierra.ControlFlowGraph {
	b0 := &sierra.BasicBlock{Index: 0, Succs: []sierra.CFGEdge{{Target: 1}, {Target: 2}}}
	b1 := &sierra.BasicBlock{Index: 1, Succs: []sierra.CFGEdge{{Target: 3}}}
	b2 := &sierra.BasicBlock{Index: 2, Succs: []sierra.CFGEdge{{Target: 3}}}
	b3 := &sierra.BasicBlock{Index: 3}
	return &sierra.ControlFlowGraph{Entry: 0, Blocks: []*sierra.BasicBlock{b0, b1, b2, b3}}
}

// loop: 0 -> 1 (header) -> {2 (body) -> 1, 3 (exit)}.
func loopCFG() *sierra.ControlFlowGraph {
	b0 := &sierra.BasicBlock{Index: 0, Succs: []sierra.CFGEdge{{Target: 1}}}
	b1 := &sierra.BasicBlock{Index: 1, Succs: []sierra.CFGEdge{{Target: 2}, {Target: 3}}}
	b2 := &sierra.BasicBlock{Index: 2, Succs: []sierra.CFGEdge{{Target: 1}}}
	b3 := &sierra.BasicBlock{Index: 3}
	return &sierra.ControlFlowGraph{Entry: 0, Blocks: []*sierra.BasicBlock{b0, b1, b2, b3}}
}

func TestDominators(t *testing.T) {
	g := diamondCFG()
	idom := Dominators(g)
	require.Equal(t, 0, idom[0]) // root is its own immediate dominator by convention
	require.Equal(t, 0, idom[1])
	require.Equal(t, 0, idom[2])
	require.Equal(t, 0, idom[3]) // 3 is reached via both branches, so idom is the join point's common ancestor: 0
}

func TestPostDominators(t *testing.T) {
	g := diamondCFG()
	ipdom := PostDominators(g)
	require.Equal(t, 3, ipdom[0])
	require.Equal(t, 3, ipdom[1])
	require.Equal(t, 3, ipdom[2])
}

func TestRecoverStraight(t *testing.T) {
	g := linearCFG()
	r := Recover(g)
	require.Equal(t, sierra.RegionStraight, r.Kind)
	require.Equal(t, []int{0, 1, 2}, r.Blocks)
	require.Nil(t, r.Next)
}

func TestRecoverIfElse(t *testing.T) {
	g := diamondCFG()
	r := Recover(g)
	require.Equal(t, sierra.RegionIfElse, r.Kind)
	require.Equal(t, 0, r.CondBlock)
	require.NotNil(t, r.Then)
	require.NotNil(t, r.Else)
	require.Equal(t, []int{1}, r.Then.Blocks)
	require.Equal(t, []int{2}, r.Else.Blocks)
	require.NotNil(t, r.Next)
	require.Equal(t, []int{3}, r.Next.Blocks)
}

func TestRecoverLoop(t *testing.T) {
	g := loopCFG()
	Recover(g)
	require.True(t, g.Blocks[1].IsLoopHeader)
	require.Equal(t, []int{2}, g.Blocks[1].LoopBackEdges)

	r := Recover(loopCFG())
	require.Equal(t, sierra.RegionStraight, r.Kind)
	require.Equal(t, []int{0}, r.Blocks)
	require.NotNil(t, r.Next)
	require.Equal(t, sierra.RegionLoop, r.Next.Kind)
	require.Equal(t, 1, r.Next.Header)
	require.Equal(t, []int{3}, r.Next.Exits)
	require.NotNil(t, r.Next.Body)
	require.Equal(t, []int{2}, r.Next.Body.Blocks)
}
