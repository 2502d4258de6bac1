// Package cfg builds per-function control-flow graphs from a Sierra
// Program: basic-block leader detection, block partitioning, and edge
// construction (spec.md §4.2), grounded on the teacher's SSA-to-CFG pass
// (ssa_cfg.go) retargeted from *ssa.BasicBlock to sierra.Offset ranges.
package cfg

import (
	"fmt"
	"io"
	"sort"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
)

// Build constructs the CFG for the statement range [start,end) of prog,
// per spec.md §4.2's leader algorithm, and attaches it to fn.
func Build(prog *sierra.Program, fn *sierra.Function, start, end sierra.Offset) (*sierra.ControlFlowGraph, error) {
	if int(end) > len(prog.Statements) || start >= end {
		return nil, &sierraerr.ModelError{Offset: int(start), Msg: "empty or out-of-range function body"}
	}

	leaders := map[sierra.Offset]bool{start: true}
	for off := start; off < end; off++ {
		stmt := prog.StatementAt(off)
		if stmt == nil {
			return nil, &sierraerr.ModelError{Offset: int(off), Msg: "missing statement"}
		}
		switch s := stmt.(type) {
		case *sierra.Invocation:
			if s.IsConditional() {
				for _, b := range s.Branches {
					target := b.Target
					if b.Fallthrough {
						target = off + 1
					}
					if target >= start && target < end {
						leaders[target] = true
					}
				}
				if off+1 < end {
					leaders[off+1] = true
				}
			}
		case *sierra.Return:
			if off+1 < end {
				leaders[off+1] = true
			}
		}
	}

	var sorted []sierra.Offset
	for l := range leaders {
		sorted = append(sorted, l)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	g := &sierra.ControlFlowGraph{FuncName: fn.Name}
	blockOf := map[sierra.Offset]int{} // leader offset -> block index

	for i, l := range sorted {
		blkEnd := end
		if i+1 < len(sorted) {
			blkEnd = sorted[i+1]
		}
		b := &sierra.BasicBlock{Index: i, Start: l, End: blkEnd}
		for off := l; off < blkEnd; off++ {
			b.Stmts = append(b.Stmts, off)
		}
		g.Blocks = append(g.Blocks, b)
		blockOf[l] = i
	}
	g.Entry = blockOf[start]

	for _, b := range g.Blocks {
		if len(b.Stmts) == 0 {
			continue
		}
		lastOff := b.Stmts[len(b.Stmts)-1]
		stmt := prog.StatementAt(lastOff)
		switch s := stmt.(type) {
		case *sierra.Return:
			// no successors
		case *sierra.Invocation:
			for bi, br := range s.Branches {
				target := br.Target
				kind := sierra.BranchEdge
				if br.Fallthrough {
					target = lastOff + 1
					kind = sierra.Fallthrough
				}
				if len(s.Branches) == 1 {
					kind = sierra.Fallthrough
				}
				idx, ok := blockOf[target]
				if !ok {
					return nil, &sierraerr.ModelError{Offset: int(lastOff), Msg: "branch target resolves to no block"}
				}
				b.Succs = append(b.Succs, sierra.CFGEdge{Target: idx, Kind: kind, BranchIndex: bi})
			}
		}
	}

	fn.CFG = g
	return g, nil
}

// Reachable returns the set of block indices reachable from the entry
// block, per spec.md §8's CFG-reachability property.
func Reachable(g *sierra.ControlFlowGraph) map[int]bool {
	visited := map[int]bool{g.Entry: true}
	stack := []int{g.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.Blocks[n].Succs {
			if !visited[e.Target] {
				visited[e.Target] = true
				stack = append(stack, e.Target)
			}
		}
	}
	return visited
}

// Prune removes blocks unreachable from entry, renumbering the remaining
// blocks' indices and edges. Parse artefacts with no real control-flow
// path from the function entry are dropped this way (spec.md §3's CFG
// invariant: "unreachable parse artefacts are pruned").
func Prune(g *sierra.ControlFlowGraph) {
	reach := Reachable(g)
	if len(reach) == len(g.Blocks) {
		return
	}
	remap := make(map[int]int, len(reach))
	var kept []*sierra.BasicBlock
	for _, b := range g.Blocks {
		if !reach[b.Index] {
			continue
		}
		remap[b.Index] = len(kept)
		kept = append(kept, b)
	}
	for newIdx, b := range kept {
		b.Index = newIdx
		var succs []sierra.CFGEdge
		for _, e := range b.Succs {
			if nt, ok := remap[e.Target]; ok {
				e.Target = nt
				succs = append(succs, e)
			}
		}
		b.Succs = succs
	}
	g.Entry = remap[g.Entry]
	g.Blocks = kept
}

// WriteDOT serialises g as a Graphviz "digraph" to w (spec.md §6 "--cfg"),
// labeling each block with its offset range and marking loop headers.
func WriteDOT(w io.Writer, g *sierra.ControlFlowGraph) error {
	name := "cfg"
	if g.FuncName != "" {
		name = sanitizeDotName(g.FuncName)
	}
	if _, err := fmt.Fprintf(w, "digraph %s {\n", name); err != nil {
		return err
	}
	for _, b := range g.Blocks {
		shape := "box"
		style := ""
		if b.IsLoopHeader {
			style = ", style=filled, fillcolor=lightyellow"
		}
		if b.Index == g.Entry {
			shape = "box, peripheries=2"
		}
		if _, err := fmt.Fprintf(w, "  %d [shape=%s%s, label=\"block %d\\n[%d,%d)\"];\n",
			b.Index, shape, style, b.Index, b.Start, b.End); err != nil {
			return err
		}
	}
	for _, b := range g.Blocks {
		for _, e := range b.Succs {
			if _, err := fmt.Fprintf(w, "  %d -> %d [label=%q];\n", b.Index, e.Target, e.Kind.String()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func sanitizeDotName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ':' || r == '<' || r == '>' || r == ',' || r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
