package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/FuzzingLabs/sierra-analyzer/internal/callgraph"
	"github.com/FuzzingLabs/sierra-analyzer/internal/felt"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/symex"
)

// resolveLibfunc splits an invocation's declared libfunc id into its
// base template name and raw type/const argument text, shared across
// every detector that needs to recognize a specific libfunc.
func resolveLibfunc(prog *sierra.Program, id string) (base, targs string) {
	decl, ok := prog.LibfuncByID(id)
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

func userCallee(targs string) (string, bool) {
	const prefix = "user@"
	if strings.HasPrefix(targs, prefix) {
		return targs[len(prefix):], true
	}
	return "", false
}

// --- functions ---------------------------------------------------------

type functionsDetector struct{}

func (functionsDetector) ID() string          { return "functions" }
func (functionsDetector) Name() string { return "Functions" }
func (functionsDetector) Description() string {
	return "Lists every function's name and signature."
}
func (functionsDetector) Kind() Kind { return KindInfo }

func (functionsDetector) Run(ctx *Context) (Report, error) {
	var b strings.Builder
	fns := append([]*sierra.Function(nil), ctx.Prog.Functions...)
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	for _, fn := range fns {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = fmt.Sprintf("%s: %s", p.Var, p.Type)
		}
		fmt.Fprintf(&b, "%s(%s) -> (%s)\n", fn.Name, strings.Join(params, ", "), strings.Join(fn.RetTypes, ", "))
	}
	return Report{ID: "functions", Name: "Functions", Text: b.String()}, nil
}

// --- statistics ----------------------------------------------------------

type statisticsDetector struct{}

func (statisticsDetector) ID() string          { return "statistics" }
func (statisticsDetector) Name() string { return "Statistics" }
func (statisticsDetector) Description() string {
	return "Counts statements, blocks, branches, recursive functions, and distinct libfuncs."
}
func (statisticsDetector) Kind() Kind { return KindInfo }

func (statisticsDetector) Run(ctx *Context) (Report, error) {
	libfuncs := map[string]bool{}
	for _, s := range ctx.Prog.Statements {
		if inv, ok := s.(*sierra.Invocation); ok {
			libfuncs[inv.Libfunc] = true
		}
	}

	blocks, branches := 0, 0
	for _, fn := range ctx.Prog.Functions {
		if fn.CFG == nil {
			continue
		}
		blocks += len(fn.CFG.Blocks)
		for _, b := range fn.CFG.Blocks {
			if len(b.Succs) > 1 {
				branches++
			}
		}
	}

	recursive := 0
	if ctx.CallGraph != nil {
		for _, fn := range ctx.Prog.Functions {
			if callgraph.Recursive(ctx.CallGraph, fn.Name) {
				recursive++
			}
		}
	}

	text := fmt.Sprintf(
		"statements: %d\nfunctions: %d\nblocks: %d\nbranches: %d\nrecursive functions: %d\ndistinct libfuncs: %d\n",
		len(ctx.Prog.Statements), len(ctx.Prog.Functions), blocks, branches, recursive, len(libfuncs),
	)
	return Report{ID: "statistics", Name: "Statistics", Text: text}, nil
}

// --- strings ---------------------------------------------------------

type stringsDetector struct{}

func (stringsDetector) ID() string          { return "strings" }
func (stringsDetector) Name() string { return "Strings" }
func (stringsDetector) Description() string {
	return "Lists recovered string literals and the functions that use them."
}
func (stringsDetector) Kind() Kind { return KindInfo }

func (stringsDetector) Run(ctx *Context) (Report, error) {
	var b strings.Builder
	var findings []Finding
	for _, fr := range ctx.Prog.SplitFunctions() {
		for off := fr.Start; off < fr.End; off++ {
			inv, ok := ctx.Prog.StatementAt(off).(*sierra.Invocation)
			if !ok {
				continue
			}
			base, targs := resolveLibfunc(ctx.Prog, inv.Libfunc)
			if base != "const_as_immediate" {
				continue
			}
			s, ok := decodeConstString(targs)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s: %q (offset %d)\n", fr.Fn.Name, s, off)
			findings = append(findings, Finding{Detector: "strings", Function: fr.Fn.Name, Offset: off, Message: s})
		}
	}
	return Report{ID: "strings", Name: "Strings", Text: b.String(), Findings: findings}, nil
}

// decodeConstString extracts the literal felt252 value out of a
// const_as_immediate invocation's generic argument string and decodes it
// as an ASCII short string. targs is already stripped of its outermost
// "<...>" by resolveLibfunc, but the canonical Sierra form nests a
// further Const<felt252, N> generic inside it, so a trailing '>' from
// that inner closing bracket survives onto N (e.g. "Const<felt252,
// 0x68656c6c6f>"); trim it before parsing.
func decodeConstString(targs string) (string, bool) {
	idx := strings.LastIndexByte(targs, ',')
	if idx == -1 {
		return "", false
	}
	n := strings.TrimRight(strings.TrimSpace(targs[idx+1:]), ">")
	v, ok := felt.ParseLiteral(n)
	if !ok {
		return "", false
	}
	return v.AsciiString()
}

// --- controlled_library_call ---------------------------------------------

type controlledLibraryCallDetector struct{}

func (controlledLibraryCallDetector) ID() string  { return "controlled_library_call" }
func (controlledLibraryCallDetector) Name() string { return "Controlled Library Call" }
func (controlledLibraryCallDetector) Description() string {
	return "Flags library-call sites whose arguments are data-dependent on a function parameter."
}
func (controlledLibraryCallDetector) Kind() Kind { return KindFinding }

func (controlledLibraryCallDetector) Run(ctx *Context) (Report, error) {
	var b strings.Builder
	var findings []Finding
	for _, fr := range ctx.Prog.SplitFunctions() {
		tainted := taintedVars(ctx.Prog, fr, nil)
		for off := fr.Start; off < fr.End; off++ {
			inv, ok := ctx.Prog.StatementAt(off).(*sierra.Invocation)
			if !ok {
				continue
			}
			base, targs := resolveLibfunc(ctx.Prog, inv.Libfunc)
			if base != "function_call" {
				continue
			}
			if _, user := userCallee(targs); user {
				continue // library calls only, per spec.md §4.6
			}
			for _, a := range inv.Args {
				if tainted[a] {
					msg := fmt.Sprintf("%s: library call %q at offset %d is controlled by parameter-derived %s", fr.Fn.Name, targs, off, a)
					b.WriteString(msg + "\n")
					findings = append(findings, Finding{Detector: "controlled_library_call", Function: fr.Fn.Name, Offset: off, Message: msg})
					break
				}
			}
		}
	}
	return Report{ID: "controlled_library_call", Name: "Controlled Library Call", Text: b.String(), Findings: findings}, nil
}

// --- felt_overflow -----------------------------------------------------

type feltOverflowDetector struct{}

func (feltOverflowDetector) ID() string  { return "felt_overflow" }
func (feltOverflowDetector) Name() string { return "Felt Overflow" }
func (feltOverflowDetector) Description() string {
	return "Flags felt252 arithmetic whose operands trace back to an unconstrained parameter without an intervening range check."
}
func (feltOverflowDetector) Kind() Kind { return KindFinding }

var arithLibfuncs = map[string]bool{"felt252_add": true, "felt252_sub": true, "felt252_mul": true}

func (feltOverflowDetector) Run(ctx *Context) (Report, error) {
	sanitizers := ctx.Config.SanitizerSet()
	var b strings.Builder
	var findings []Finding
	for _, fr := range ctx.Prog.SplitFunctions() {
		tainted := taintedVars(ctx.Prog, fr, sanitizers)
		for off := fr.Start; off < fr.End; off++ {
			inv, ok := ctx.Prog.StatementAt(off).(*sierra.Invocation)
			if !ok {
				continue
			}
			base, _ := resolveLibfunc(ctx.Prog, inv.Libfunc)
			if !arithLibfuncs[base] {
				continue
			}
			for _, a := range inv.Args {
				if tainted[a] {
					msg := fmt.Sprintf("%s: unchecked %s at offset %d depends on unconstrained %s", fr.Fn.Name, base, off, a)
					b.WriteString(msg + "\n")
					findings = append(findings, Finding{Detector: "felt_overflow", Function: fr.Fn.Name, Offset: off, Message: msg})
					break
				}
			}
		}
	}
	return Report{ID: "felt_overflow", Name: "Felt Overflow", Text: b.String(), Findings: findings}, nil
}

// taintedVars computes, for a single function's statement range, the set
// of variables transitively data-dependent on one of its parameters. A
// single forward pass over statement offsets suffices: each variable has
// exactly one defining statement, addressed by id rather than by runtime
// position, so control-flow back-edges don't affect the def-use graph.
// When sanitizers is non-nil, an invocation whose base libfunc is in the
// set clears taint on its outputs instead of propagating it.
func taintedVars(prog *sierra.Program, fr sierra.FunctionRange, sanitizers map[string]bool) map[sierra.VarID]bool {
	tainted := map[sierra.VarID]bool{}
	for _, p := range fr.Fn.Params {
		tainted[p.Var] = true
	}
	for off := fr.Start; off < fr.End; off++ {
		inv, ok := prog.StatementAt(off).(*sierra.Invocation)
		if !ok {
			continue
		}
		anyTainted := false
		for _, a := range inv.Args {
			if tainted[a] {
				anyTainted = true
				break
			}
		}
		if !anyTainted {
			continue
		}
		if sanitizers != nil {
			base, _ := resolveLibfunc(prog, inv.Libfunc)
			if sanitizers[base] {
				continue
			}
		}
		for _, br := range inv.Branches {
			for _, r := range br.Results {
				tainted[r] = true
			}
		}
	}
	return tainted
}

// --- tests ---------------------------------------------------------------

type testsDetector struct{}

func (testsDetector) ID() string          { return "tests" }
func (testsDetector) Name() string { return "Tests" }
func (testsDetector) Description() string {
	return "Runs the symbolic executor on every felt252-only-parameter function and reports one model per feasible path."
}
func (testsDetector) Kind() Kind { return KindInfo }

func (testsDetector) Run(ctx *Context) (Report, error) {
	bound := ctx.SymbolicBound
	if bound == 0 {
		bound = ctx.Config.SymbolicLoopBound
	}
	var b strings.Builder
	for _, fr := range ctx.Prog.SplitFunctions() {
		if !symex.Eligible(fr.Fn) {
			continue
		}
		models := symex.Run(ctx.Prog, fr.Fn, fr.End, symex.Config{LoopBound: bound})
		for _, m := range models {
			fmt.Fprintf(&b, "%s: %s", fr.Fn.Name, formatModel(fr.Fn, m))
		}
	}
	return Report{ID: "tests", Name: "Tests", Text: b.String()}, nil
}

func formatModel(fn *sierra.Function, m symex.Model) string {
	parts := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		val := "?"
		if i < len(m.Params) {
			val = m.Params[i].String()
		}
		parts[i] = fmt.Sprintf("%s: %s", p.Var, val)
	}
	suffix := "\n"
	if m.Partial {
		suffix = fmt.Sprintf(" (partial: %v)\n", m.Reason)
	} else if len(m.Return) > 0 {
		ret := make([]string, len(m.Return))
		for i, r := range m.Return {
			ret[i] = r.String()
		}
		suffix = fmt.Sprintf(" -> (%s)\n", strings.Join(ret, ", "))
	}
	return strings.Join(parts, ", ") + suffix
}
