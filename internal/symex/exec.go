// Package symex performs bounded intra-procedural symbolic execution
// over felt252-parameter functions (spec.md §4.7): a worklist of
// SymbolicState forks at conditional branches, consults an abstracted
// SMT backend to prune infeasible paths, and reports one concrete
// parameter assignment per feasible path.
package symex

import (
	"fmt"
	"strings"

	"github.com/FuzzingLabs/sierra-analyzer/internal/felt"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
	"github.com/FuzzingLabs/sierra-analyzer/internal/smt"
)

// DefaultLoopBound is K from spec.md §4.7: each CFG edge may be crossed
// at most this many times along a single path.
const DefaultLoopBound = 3

// Config parameterizes a run.
type Config struct {
	LoopBound int                // 0 means DefaultLoopBound
	NewSolver func() smt.Solver  // nil means smt.New
}

func (c Config) bound() int {
	if c.LoopBound <= 0 {
		return DefaultLoopBound
	}
	return c.LoopBound
}

func (c Config) newSolver() smt.Solver {
	if c.NewSolver == nil {
		return smt.New()
	}
	return c.NewSolver()
}

// Model is the outcome of one explored path.
type Model struct {
	// Params is the satisfying assignment restricted to fn's own
	// parameters, in declaration order.
	Params []felt.Felt
	// Return holds the final return values when the path reached a
	// Return statement with fully-known terms; nil otherwise.
	Return []felt.Felt
	// Partial is set when the path aborted before a Return (unsupported
	// libfunc or loop-bound exhaustion) rather than completing normally.
	Partial bool
	Reason  *sierraerr.SymbolicError
}

type pathState struct {
	offset      sierra.Offset
	vars        map[sierra.VarID]smt.Term
	constraints []smt.Constraint
	edgeVisits  map[edgeKey]int
	fresh       int
}

type edgeKey struct{ from, to sierra.Offset }

func (p *pathState) clone() *pathState {
	vars := make(map[sierra.VarID]smt.Term, len(p.vars))
	for k, v := range p.vars {
		vars[k] = v
	}
	cs := make([]smt.Constraint, len(p.constraints))
	copy(cs, p.constraints)
	ev := make(map[edgeKey]int, len(p.edgeVisits))
	for k, v := range p.edgeVisits {
		ev[k] = v
	}
	return &pathState{offset: p.offset, vars: vars, constraints: cs, edgeVisits: ev, fresh: p.fresh}
}

// Eligible reports whether fn's parameters are exclusively field
// elements, the precondition spec.md §4.7 places on running the
// executor at all.
func Eligible(fn *sierra.Function) bool {
	if len(fn.Params) == 0 {
		return false
	}
	for _, p := range fn.Params {
		if p.Type != "felt252" {
			return false
		}
	}
	return true
}

// Run explores fn's feasible paths (by statement offset, independent of
// any previously recovered CFG) and returns one Model per completed
// path, in the order paths complete.
func Run(prog *sierra.Program, fn *sierra.Function, end sierra.Offset, cfg Config) []Model {
	init := &pathState{
		offset:     fn.Entry,
		vars:       map[sierra.VarID]smt.Term{},
		edgeVisits: map[edgeKey]int{},
	}
	for _, p := range fn.Params {
		init.vars[p.Var] = smt.VarTerm(p.Var.String())
	}

	worklist := []*pathState{init}
	var models []Model

	for len(worklist) > 0 {
		st := worklist[0]
		worklist = worklist[1:]

		if st.offset < fn.Entry || st.offset >= end {
			continue
		}
		stmt := prog.StatementAt(st.offset)
		if stmt == nil {
			continue
		}

		switch s := stmt.(type) {
		case *sierra.Return:
			models = append(models, completeModel(cfg, fn, st, s))

		case *sierra.Invocation:
			next, abort := step(prog, st, s)
			if abort != nil {
				models = append(models, partialModel(fn, st, abort))
				continue
			}
			if !s.IsConditional() {
				child := next[0]
				key := edgeKey{from: st.offset, to: child.offset}
				child.edgeVisits[key]++
				if child.edgeVisits[key] > cfg.bound() {
					models = append(models, partialModel(fn, st, &sierraerr.SymbolicError{Reason: sierraerr.LoopBoundReached}))
					continue
				}
				worklist = append(worklist, child)
				continue
			}
			for _, child := range next {
				if child.edgeVisits[edgeKey{from: st.offset, to: child.offset}]+1 > cfg.bound() {
					models = append(models, partialModel(fn, st, &sierraerr.SymbolicError{Reason: sierraerr.LoopBoundReached}))
				}
			}
			for _, forked := range forkBranches(cfg, prog, st, s, next) {
				worklist = append(worklist, forked)
			}
		}
	}
	return models
}

// step applies one invocation's data-flow effect, returning one
// successor pathState per branch (pre-fork; forkBranches attaches the
// branch guard and prunes infeasible ones). abort is non-nil when the
// libfunc isn't in the supported set.
func step(prog *sierra.Program, st *pathState, inv *sierra.Invocation) ([]*pathState, *sierraerr.SymbolicError) {
	base, targs := resolve(prog, inv.Libfunc)
	outs := firstOuts(inv)

	apply := func(vars map[sierra.VarID]smt.Term) *sierraerr.SymbolicError {
		switch {
		case base == "store_temp" || base == "rename":
			if len(inv.Args) == 1 && len(outs) == 1 {
				vars[outs[0]] = vars[inv.Args[0]]
			}
		case base == "drop" || base == "branch_align" || base == "disable_ap_tracking":
			// no data-flow effect
		case base == "dup":
			if len(inv.Args) == 1 && len(outs) == 2 {
				v := vars[inv.Args[0]]
				vars[outs[0]] = v
				vars[outs[1]] = v
			}
		case base == "felt252_add" && len(inv.Args) == 2 && len(outs) == 1:
			vars[outs[0]] = smt.Add(vars[inv.Args[0]], vars[inv.Args[1]])
		case base == "felt252_sub" && len(inv.Args) == 2 && len(outs) == 1:
			vars[outs[0]] = smt.Sub(vars[inv.Args[0]], vars[inv.Args[1]])
		case base == "felt252_mul" && len(inv.Args) == 2 && len(outs) == 1:
			if term, ok := smt.Mul(vars[inv.Args[0]], vars[inv.Args[1]]); ok {
				vars[outs[0]] = term
			} else {
				// Genuinely nonlinear: over-approximate with a fresh,
				// unconstrained symbolic result rather than abort the
				// whole path.
				st.fresh++
				vars[outs[0]] = smt.VarTerm(fmt.Sprintf("%%mul%d", st.fresh))
			}
		case base == "felt252_is_zero":
			// handled by forkBranches via the guard; no output rewrite.
		case base == "const_as_immediate":
			if len(outs) == 1 {
				n, ok := constValue(targs)
				if !ok {
					return &sierraerr.SymbolicError{Reason: sierraerr.Unsupported, Libfunc: inv.Libfunc}
				}
				vars[outs[0]] = smt.ConstTerm(n)
			}
		case base == "function_call":
			if _, user := userCallee(targs); user {
				for _, o := range outs {
					st.fresh++
					vars[o] = smt.VarTerm(fmt.Sprintf("%%call%d", st.fresh))
				}
			} else {
				return &sierraerr.SymbolicError{Reason: sierraerr.Unsupported, Libfunc: inv.Libfunc}
			}
		default:
			return &sierraerr.SymbolicError{Reason: sierraerr.Unsupported, Libfunc: inv.Libfunc}
		}
		return nil
	}

	if err := apply(st.vars); err != nil {
		return nil, err
	}

	var results []*pathState
	for _, br := range inv.Branches {
		child := st.clone()
		target := br.Target
		if br.Fallthrough {
			target = st.offset + 1
		}
		child.offset = target
		results = append(results, child)
	}
	return results, nil
}

// forkBranches attaches each branch's guard (for felt252_is_zero
// conditionals) to the corresponding successor, checks the loop bound,
// and discards branches the solver reports unsatisfiable.
func forkBranches(cfg Config, prog *sierra.Program, parent *pathState, inv *sierra.Invocation, children []*pathState) []*pathState {
	base, _ := resolve(prog, inv.Libfunc)
	isZeroGuard := base == "felt252_is_zero" && len(inv.Args) == 1

	var kept []*pathState
	for i, child := range children {
		key := edgeKey{from: parent.offset, to: child.offset}
		child.edgeVisits[key]++
		if child.edgeVisits[key] > cfg.bound() {
			continue // over the bound: Run has already reported this
			// branch as a partial model with LoopBoundReached.
		}

		if isZeroGuard {
			rel := smt.NotEqualZero
			if i == 0 {
				rel = smt.EqualZero
			}
			child.constraints = append(child.constraints, smt.Constraint{Term: parent.vars[inv.Args[0]], Rel: rel})
		}

		s := cfg.newSolver()
		s.Push()
		for _, c := range child.constraints {
			s.Assert(c)
		}
		status, err := s.CheckSat()
		if err != nil || status != smt.Sat {
			continue
		}
		kept = append(kept, child)
	}
	return kept
}

func completeModel(cfg Config, fn *sierra.Function, st *pathState, ret *sierra.Return) Model {
	s := cfg.newSolver()
	s.Push()
	for _, c := range st.constraints {
		s.Assert(c)
	}
	status, err := s.CheckSat()
	if err != nil || status != smt.Sat {
		return Model{Partial: true, Reason: &sierraerr.SymbolicError{Reason: sierraerr.SolverUnknown, Func: fn.Name}}
	}

	params := make([]felt.Felt, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = witnessOf(s, st.vars[p.Var])
	}
	var retVals []felt.Felt
	known := true
	for _, v := range ret.Values {
		t, ok := st.vars[v]
		if !ok {
			known = false
			break
		}
		retVals = append(retVals, witnessOf(s, t))
	}
	if !known {
		retVals = nil
	}
	return Model{Params: params, Return: retVals}
}

func partialModel(fn *sierra.Function, st *pathState, reason *sierraerr.SymbolicError) Model {
	reason.Func = fn.Name
	params := make([]felt.Felt, len(fn.Params))
	for i, p := range fn.Params {
		if t, ok := st.vars[p.Var]; ok && t.IsConstant() {
			params[i] = t.Constant
		}
	}
	return Model{Params: params, Partial: true, Reason: reason}
}

// witnessOf evaluates a term against the solver's last model, using
// zero for any variable the solver left unconstrained.
func witnessOf(s smt.Solver, t smt.Term) felt.Felt {
	sum := t.Constant
	for v, coeff := range t.Coeffs {
		val, ok := s.GetValue(v)
		if !ok {
			val = felt.Zero()
		}
		sum = sum.Add(coeff.Mul(val))
	}
	return sum
}

func firstOuts(inv *sierra.Invocation) []sierra.VarID {
	if len(inv.Branches) == 0 {
		return nil
	}
	return inv.Branches[0].Results
}

func resolve(prog *sierra.Program, id string) (base, targs string) {
	if prog == nil {
		return id, ""
	}
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

// constValue extracts N from a "Const<T, N>" argument string. targs is
// already stripped of its outermost "<...>" by resolve, but the canonical
// Sierra form nests a further Const<felt252, N> generic inside it, so a
// trailing '>' from that inner closing bracket survives onto N (e.g.
// "Const<felt252, 0x68656c6c6f>"); trim it and parse via felt.ParseLiteral,
// which handles both decimal and hex literals of arbitrary magnitude.
func constValue(targs string) (felt.Felt, bool) {
	idx := strings.LastIndexByte(targs, ',')
	if idx == -1 {
		return felt.Felt{}, false
	}
	n := strings.TrimRight(strings.TrimSpace(targs[idx+1:]), ">")
	return felt.ParseLiteral(n)
}
