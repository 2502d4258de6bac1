// Package decompile renders a function's recovered CFG and regions into
// a deterministic pseudo-source listing (spec.md §4.4), grounded on the
// teacher's flattened-output style in ssa_cfg.go (one emitted line per
// source construct, offsets threaded through for traceability).
package decompile

import (
	"fmt"
	"strings"

	"github.com/FuzzingLabs/sierra-analyzer/internal/felt"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
)

// suppressed libfuncs never produce an output line; their outputs keep
// the Sierra variable numbering of their inputs implicitly (the renderer
// never needs to unify them, since every variable keeps its own v<id>
// name regardless of aliasing).
var suppressed = map[string]bool{
	"store_temp":          true,
	"drop":                true,
	"rename":              true,
	"branch_align":        true,
	"disable_ap_tracking": true,
}

// Render produces fn.Decompiled from fn.CFG and fn.Regions (both of
// which must already be populated).
func Render(prog *sierra.Program, fn *sierra.Function) error {
	if fn.CFG == nil || fn.Regions == nil {
		return &sierraerr.ModelError{Offset: int(fn.Entry), Msg: "decompile requires a built CFG and region tree"}
	}
	r := &renderer{prog: prog, fn: fn}
	r.emit(-1, fmt.Sprintf("func %s(%s) -> (%s) {", fn.Name, r.paramList(), strings.Join(fn.RetTypes, ", ")))
	r.indent++
	r.renderRegion(fn.Regions)
	r.indent--
	r.emit(-1, "}")
	fn.Decompiled = r.lines
	return nil
}

type renderer struct {
	prog   *sierra.Program
	fn     *sierra.Function
	lines  []sierra.DecompiledLine
	indent int
}

func (r *renderer) paramList() string {
	parts := make([]string, len(r.fn.Params))
	for i, p := range r.fn.Params {
		parts[i] = fmt.Sprintf("%s: %s", p.Var, p.Type)
	}
	return strings.Join(parts, ", ")
}

func (r *renderer) emit(off sierra.Offset, text string) {
	r.lines = append(r.lines, sierra.DecompiledLine{
		Text:   strings.Repeat("    ", r.indent) + text,
		Offset: off,
	})
}

func (r *renderer) emitComment(off sierra.Offset, text, comment string) {
	r.lines = append(r.lines, sierra.DecompiledLine{
		Text:    strings.Repeat("    ", r.indent) + text,
		Offset:  off,
		Comment: comment,
	})
}

func (r *renderer) renderRegion(reg *sierra.Region) {
	if reg == nil {
		return
	}
	switch reg.Kind {
	case sierra.RegionStraight:
		for _, idx := range reg.Blocks {
			r.renderBlockBody(r.fn.CFG.Blocks[idx])
		}
		for _, off := range reg.Uncollapsed {
			r.emit(-1, fmt.Sprintf("// uncollapsed branch to offset %d", off))
		}
		r.renderRegion(reg.Next)

	case sierra.RegionIf, sierra.RegionIfElse:
		blk := r.fn.CFG.Blocks[reg.CondBlock]
		cond := r.renderGuard(blk)
		r.emit(-1, fmt.Sprintf("if (%s) {", cond))
		r.indent++
		r.renderRegion(reg.Then)
		r.indent--
		if reg.Kind == sierra.RegionIfElse {
			r.emit(-1, "} else {")
			r.indent++
			r.renderRegion(reg.Else)
			r.indent--
		}
		r.emit(-1, "}")
		r.renderRegion(reg.Next)

	case sierra.RegionLoop:
		blk := r.fn.CFG.Blocks[reg.Header]
		cond := r.renderLoopGuard(blk, reg)
		r.emit(-1, fmt.Sprintf("while (%s) {", cond))
		r.indent++
		r.renderRegion(reg.Body)
		r.indent--
		r.emit(-1, "}")
		r.renderRegion(reg.Next)
	}
}

// renderBlockBody renders every statement of blk except a trailing
// conditional invocation (that one belongs to the enclosing region's
// guard, not the straight-line body).
func (r *renderer) renderBlockBody(blk *sierra.BasicBlock) {
	for i, off := range blk.Stmts {
		stmt := r.prog.StatementAt(off)
		if i == len(blk.Stmts)-1 {
			if inv, ok := stmt.(*sierra.Invocation); ok && inv.IsConditional() {
				continue // consumed as this block's region guard
			}
		}
		r.renderStatement(off, stmt)
	}
}

func (r *renderer) renderStatement(off sierra.Offset, stmt sierra.Statement) {
	switch s := stmt.(type) {
	case *sierra.Return:
		r.emit(off, fmt.Sprintf("return (%s)", joinVars(s.Values)))
	case *sierra.Invocation:
		r.renderInvocation(off, s)
	}
}

func (r *renderer) renderInvocation(off sierra.Offset, inv *sierra.Invocation) {
	base, targs := r.resolve(inv.Libfunc)
	outs := outputsOf(inv)

	switch {
	case suppressed[base]:
		return

	case base == "dup":
		if len(inv.Args) == 1 && len(outs) == 2 {
			in := inv.Args[0].String()
			r.emit(off, fmt.Sprintf("(%s, %s) = (%s, %s)", outs[0], outs[1], in, in))
		}

	case base == "felt252_add" && len(inv.Args) == 2 && len(outs) == 1:
		r.emit(off, fmt.Sprintf("%s = %s + %s", outs[0], inv.Args[0], inv.Args[1]))

	case base == "felt252_sub" && len(inv.Args) == 2 && len(outs) == 1:
		r.emit(off, fmt.Sprintf("%s = %s - %s", outs[0], inv.Args[0], inv.Args[1]))

	case base == "felt252_mul" && len(inv.Args) == 2 && len(outs) == 1:
		r.emit(off, fmt.Sprintf("%s = %s * %s", outs[0], inv.Args[0], inv.Args[1]))

	case base == "const_as_immediate":
		n, asciiComment := constValue(targs)
		if len(outs) == 1 {
			if asciiComment != "" {
				r.emitComment(off, fmt.Sprintf("%s = %s", outs[0], n), fmt.Sprintf("%q", asciiComment))
			} else {
				r.emit(off, fmt.Sprintf("%s = %s", outs[0], n))
			}
		}

	case base == "function_call":
		if callee, ok := userCallee(targs); ok {
			r.emit(off, fmt.Sprintf("%s = %s(%s)", joinVars(outs), callee, joinVars(inv.Args)))
			return
		}
		r.emit(off, fmt.Sprintf("%s = %s<%s>(%s)", joinVars(outs), base, targs, joinVars(inv.Args)))

	default:
		if targs != "" {
			r.emit(off, fmt.Sprintf("%s = %s<%s>(%s)", joinVars(outs), base, targs, joinVars(inv.Args)))
		} else {
			r.emit(off, fmt.Sprintf("%s = %s(%s)", joinVars(outs), base, joinVars(inv.Args)))
		}
	}
}

// renderGuard renders the predicate carried by blk's terminating
// conditional invocation, e.g. "v0 == 0" for a felt252_is_zero test.
func (r *renderer) renderGuard(blk *sierra.BasicBlock) string {
	if len(blk.Stmts) == 0 {
		return "true"
	}
	last := blk.Stmts[len(blk.Stmts)-1]
	inv, ok := r.prog.StatementAt(last).(*sierra.Invocation)
	if !ok || !inv.IsConditional() {
		return "true"
	}
	base, _ := r.resolve(inv.Libfunc)
	if base == "felt252_is_zero" && len(inv.Args) == 1 {
		return fmt.Sprintf("%s == 0", inv.Args[0])
	}
	return fmt.Sprintf("%s(%s)", base, joinVars(inv.Args))
}

// renderLoopGuard renders the header's guard from the loop-continuation
// perspective: true selects the branch whose target re-enters the body.
func (r *renderer) renderLoopGuard(blk *sierra.BasicBlock, reg *sierra.Region) string {
	cond := r.renderGuard(blk)
	if len(blk.Succs) != 2 {
		return cond
	}
	exit := map[int]bool{}
	for _, e := range reg.Exits {
		exit[e] = true
	}
	if exit[blk.Succs[0].Target] && !exit[blk.Succs[1].Target] {
		return negate(cond)
	}
	return cond
}

func negate(cond string) string {
	if strings.HasSuffix(cond, "== 0") {
		return strings.Replace(cond, "== 0", "!= 0", 1)
	}
	return "!(" + cond + ")"
}

func outputsOf(inv *sierra.Invocation) []sierra.VarID {
	if len(inv.Branches) == 0 {
		return nil
	}
	return inv.Branches[0].Results
}

func joinVars(vs []sierra.VarID) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// resolve looks up inv.Libfunc's declaration and splits its LongID into a
// base template name and its raw type/const argument text, e.g.
// "dup<felt252>" -> ("dup", "felt252"); "felt252_add" -> ("felt252_add", "").
func (r *renderer) resolve(id string) (base, targs string) {
	decl, ok := r.prog.LibfuncByID(id)
	longID := id
	if ok {
		longID = decl.LongID
	}
	open := strings.IndexByte(longID, '<')
	if open == -1 {
		return longID, ""
	}
	end := strings.LastIndexByte(longID, '>')
	if end == -1 || end < open {
		return longID, ""
	}
	return longID[:open], longID[open+1 : end]
}

// userCallee extracts F from a function_call's "user@F" type argument.
func userCallee(targs string) (string, bool) {
	const prefix = "user@"
	if strings.HasPrefix(targs, prefix) {
		return targs[len(prefix):], true
	}
	return "", false
}

// constValue extracts N from a "Const<T, N>" argument string, also
// returning its decoded ASCII short-string form when printable. targs is
// already stripped of its outermost "<...>" by resolve, but the canonical
// Sierra form nests a further Const<felt252, N> generic inside it, so a
// trailing '>' from that inner closing bracket survives onto N (e.g.
// "Const<felt252, 0x68656c6c6f>"); trim it before parsing and before
// returning it as rendered text.
func constValue(targs string) (text, ascii string) {
	idx := strings.LastIndexByte(targs, ',')
	if idx == -1 {
		return targs, ""
	}
	n := strings.TrimRight(strings.TrimSpace(targs[idx+1:]), ">")
	v, ok := felt.ParseLiteral(n)
	if !ok {
		return n, ""
	}
	if s, ok := v.AsciiString(); ok {
		return n, s
	}
	return n, ""
}
