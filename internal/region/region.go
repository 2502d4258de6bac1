package region

import "github.com/FuzzingLabs/sierra-analyzer/internal/sierra"

// builder carries the dominance facts needed to fold a CFG into a Region
// tree, per spec.md §4.3.
type builder struct {
	g         *sierra.ControlFlowGraph
	idom      []int
	ipdom     []int
	loopBody  map[int]map[int]bool // header -> set of blocks in its natural loop
	header    map[int]bool
	visiting  map[int]bool // on the current recursion stack: back edge if revisited
	visited   map[int]bool
}

// Recover builds the structured Region tree for g and annotates each
// block's RegionKind/IsLoopHeader/LoopBackEdges fields in place.
func Recover(g *sierra.ControlFlowGraph) *sierra.Region {
	b := &builder{
		g:        g,
		idom:     Dominators(g),
		ipdom:    PostDominators(g),
		loopBody: map[int]map[int]bool{},
		header:   map[int]bool{},
		visiting: map[int]bool{},
		visited:  map[int]bool{},
	}
	b.findLoops()
	return b.build(g.Entry, -1)
}

// findLoops locates back edges (u -> v where v dominates u) and computes
// each header's natural loop body by walking predecessors backward from u
// until v is reached.
func (b *builder) findLoops() {
	for u, blk := range b.g.Blocks {
		for _, e := range blk.Succs {
			v := e.Target
			if Dominates(b.idom, v, u) {
				b.header[v] = true
				b.g.Blocks[v].IsLoopHeader = true
				b.g.Blocks[v].LoopBackEdges = append(b.g.Blocks[v].LoopBackEdges, u)
				b.addToLoop(v, u)
			}
		}
	}
}

func (b *builder) addToLoop(header, tail int) {
	body, ok := b.loopBody[header]
	if !ok {
		body = map[int]bool{header: true}
		b.loopBody[header] = body
	}
	if body[tail] {
		return
	}
	body[tail] = true
	stack := []int{tail}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range b.predsOfBlock(n) {
			if !body[p] {
				body[p] = true
				stack = append(stack, p)
			}
		}
	}
}

func (b *builder) predsOfBlock(n int) []int {
	var preds []int
	for i, blk := range b.g.Blocks {
		for _, e := range blk.Succs {
			if e.Target == n {
				preds = append(preds, i)
			}
		}
	}
	return preds
}

// build recovers the region starting at block, stopping (without
// consuming) once it would reach stop. stop == -1 means "run to the
// function's natural end" (a block with no successors).
func (b *builder) build(block, stop int) *sierra.Region {
	if block == -1 || block == stop {
		return nil
	}
	if b.visiting[block] {
		// Revisiting a block already on the recursion stack means an
		// irreducible back-reference outside any recognized natural loop.
		return &sierra.Region{Kind: sierra.RegionStraight, Uncollapsed: []int{block}}
	}
	if b.visited[block] {
		return &sierra.Region{Kind: sierra.RegionStraight, Uncollapsed: []int{block}}
	}

	if b.header[block] {
		return b.buildLoop(block, stop)
	}

	blk := b.g.Blocks[block]
	switch len(blk.Succs) {
	case 0:
		b.visited[block] = true
		return &sierra.Region{Kind: sierra.RegionStraight, Blocks: []int{block}}
	case 1:
		return b.buildStraight(block, stop)
	default:
		return b.buildBranch(block, stop)
	}
}

// buildStraight accumulates a maximal run of single-successor,
// non-branching, non-loop-header blocks, then threads the eventual
// branch/loop/end region via Next.
func (b *builder) buildStraight(block, stop int) *sierra.Region {
	var run []int
	cur := block
	for cur != -1 && cur != stop && !b.header[cur] {
		blk := b.g.Blocks[cur]
		if b.visited[cur] || b.visiting[cur] {
			break
		}
		if len(blk.Succs) > 1 {
			// A branch: leave cur unconsumed so the caller recurses into
			// buildBranch for it instead of folding it into this run.
			break
		}
		b.visited[cur] = true
		run = append(run, cur)
		if len(blk.Succs) == 0 {
			cur = -1
			break
		}
		cur = blk.Succs[0].Target
	}
	region := &sierra.Region{Kind: sierra.RegionStraight, Blocks: run}
	if cur != -1 && cur != stop {
		region.Next = b.build(cur, stop)
	}
	return region
}

// buildBranch recovers an If/IfElse region rooted at a 2-successor block,
// using the block's immediate post-dominator as the merge point.
func (b *builder) buildBranch(block, stop int) *sierra.Region {
	blk := b.g.Blocks[block]
	b.visited[block] = true
	b.visiting[block] = true
	defer func() { b.visiting[block] = false }()

	merge := b.ipdom[block]
	if merge == stop {
		merge = -1 // stop takes priority; don't walk past the caller's boundary
	}

	thenTarget := blk.Succs[0].Target
	elseTarget := blk.Succs[1].Target

	region := &sierra.Region{Kind: sierra.RegionIfElse, CondBlock: block}
	region.Then = b.build(thenTarget, merge)

	if elseTarget == merge {
		region.Kind = sierra.RegionIf
	} else {
		region.Else = b.build(elseTarget, merge)
	}
	blk.RegionKind = region.Kind

	if merge != -1 && merge != stop {
		region.Next = b.build(merge, stop)
	}
	return region
}

// buildLoop recovers a natural loop rooted at header, whose body is the
// set computed in findLoops; blocks outside the body that the header
// branches to are the loop's exits.
func (b *builder) buildLoop(header, stop int) *sierra.Region {
	body := b.loopBody[header]
	b.visited[header] = true
	b.visiting[header] = true
	defer func() { b.visiting[header] = false }()

	blk := b.g.Blocks[header]
	blk.RegionKind = sierra.RegionLoop
	var bodyEntry = -1
	var exits []int
	for _, e := range blk.Succs {
		if body[e.Target] && e.Target != header {
			bodyEntry = e.Target
		} else if !body[e.Target] {
			exits = append(exits, e.Target)
		}
	}

	var bodyRegion *sierra.Region
	if bodyEntry != -1 {
		bodyRegion = b.buildLoopBody(bodyEntry, header, body)
	}

	region := &sierra.Region{Kind: sierra.RegionLoop, Header: header, Body: bodyRegion, Exits: exits}
	if len(exits) == 1 && exits[0] != stop {
		region.Next = b.build(exits[0], stop)
	}
	return region
}

// buildLoopBody walks the loop body starting at bodyEntry, stopping at
// the header (the back edge) or at any block outside the body (a loop
// exit branch), without escaping the loop's own Region.
func (b *builder) buildLoopBody(entry, header int, body map[int]bool) *sierra.Region {
	if entry == header || entry == -1 {
		return nil
	}
	if !body[entry] {
		return nil
	}
	blk := b.g.Blocks[entry]
	b.visited[entry] = true

	switch len(blk.Succs) {
	case 0:
		return &sierra.Region{Kind: sierra.RegionStraight, Blocks: []int{entry}}
	case 1:
		next := blk.Succs[0].Target
		region := &sierra.Region{Kind: sierra.RegionStraight, Blocks: []int{entry}}
		if next != header && body[next] {
			region.Next = b.buildLoopBody(next, header, body)
		}
		return region
	default:
		region := &sierra.Region{Kind: sierra.RegionIfElse, CondBlock: entry}
		t, e := blk.Succs[0].Target, blk.Succs[1].Target
		if t != header && body[t] {
			region.Then = b.buildLoopBody(t, header, body)
		}
		if e == header || !body[e] {
			region.Kind = sierra.RegionIf
		} else {
			region.Else = b.buildLoopBody(e, header, body)
		}
		blk.RegionKind = region.Kind
		return region
	}
}
