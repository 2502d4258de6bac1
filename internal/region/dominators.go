// Package region recovers structured If/IfElse/Loop/Straight regions
// from a sierra.ControlFlowGraph (spec.md §4.3), grounded on the
// teacher's Cooper-Harvey-Kennedy post-dominator pass (cdg.go),
// retargeted from *ssa.BasicBlock indices to sierra.BasicBlock indices
// and extended with a matching forward-dominator pass for loop-header
// and back-edge detection.
package region

import "github.com/FuzzingLabs/sierra-analyzer/internal/sierra"

// chkIntersect finds the nearest common ancestor of a and b in the
// dominator tree, using RPO positions for efficient traversal.
func chkIntersect(idom, rpoPos []int, a, b int) int {
	for a != b {
		for rpoPos[a] > rpoPos[b] {
			a = idom[a]
		}
		for rpoPos[b] > rpoPos[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(adj [][]int, root, n int) []int {
	visited := make([]bool, n)
	order := make([]int, 0, n)

	var dfs func(int)
	dfs = func(node int) {
		visited[node] = true
		for _, next := range adj[node] {
			if !visited[next] {
				dfs(next)
			}
		}
		order = append(order, node)
	}
	dfs(root)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// chk runs the Cooper-Harvey-Kennedy iterative algorithm over adj (a
// forward adjacency list) rooted at root, returning idom[i] = immediate
// dominator of i, or -1 if i is unreachable from root.
func chk(adj [][]int, root, n int) []int {
	preds := make([][]int, n)
	for from, neighbors := range adj {
		for _, to := range neighbors {
			preds[to] = append(preds[to], from)
		}
	}

	rpo := reversePostorder(adj, root, n)
	rpoPos := make([]int, n)
	for i := range rpoPos {
		rpoPos[i] = -1
	}
	for i, node := range rpo {
		rpoPos[node] = i
	}

	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			newIdom := -1
			for _, p := range preds[b] {
				if idom[p] != -1 {
					newIdom = p
					break
				}
			}
			if newIdom == -1 {
				continue
			}
			for _, p := range preds[b] {
				if p == newIdom || idom[p] == -1 {
					continue
				}
				newIdom = chkIntersect(idom, rpoPos, p, newIdom)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	for i := range idom {
		if idom[i] == i && i != root {
			idom[i] = -1
		}
	}
	return idom
}

// Dominators computes the immediate-dominator array for g's forward CFG.
func Dominators(g *sierra.ControlFlowGraph) []int {
	n := len(g.Blocks)
	adj := make([][]int, n)
	for i, b := range g.Blocks {
		for _, e := range b.Succs {
			adj[i] = append(adj[i], e.Target)
		}
	}
	return chk(adj, g.Entry, n)
}

// PostDominators computes ipdom[i] = immediate post-dominator of block i,
// or -1 if i cannot reach any exit block (e.g. an infinite loop with no
// Return).
func PostDominators(g *sierra.ControlFlowGraph) []int {
	n := len(g.Blocks)
	vExit := n

	var exits []int
	for i, b := range g.Blocks {
		if len(b.Succs) == 0 {
			exits = append(exits, i)
		}
	}
	if len(exits) == 0 {
		ipdom := make([]int, n)
		for i := range ipdom {
			ipdom[i] = -1
		}
		return ipdom
	}

	total := n + 1
	revAdj := make([][]int, total)
	for i, b := range g.Blocks {
		for _, e := range b.Succs {
			revAdj[e.Target] = append(revAdj[e.Target], i)
		}
	}
	revAdj[vExit] = append(revAdj[vExit], exits...)

	idom := chk(revAdj, vExit, total)

	result := make([]int, n)
	for i := 0; i < n; i++ {
		d := idom[i]
		if d >= n || d < 0 {
			result[i] = -1
		} else {
			result[i] = d
		}
	}
	return result
}

// Dominates reports whether a dominates b in the tree described by idom.
func Dominates(idom []int, a, b int) bool {
	for n := b; n != -1; n = idom[n] {
		if n == a {
			return true
		}
		if idom[n] == n {
			break
		}
	}
	return a == b
}
