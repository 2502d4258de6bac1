// Package smt provides the abstract solver interface the symbolic
// executor consults to prune infeasible paths (spec.md §4.7), plus one
// concrete implementation restricted to the tractable theory the
// executor actually needs: linear combinations of felt252 variables
// under equality/disequality-to-zero constraints. No SMT/SAT binding
// exists anywhere in the example pack, so this is a from-scratch solver
// justified as stdlib-only (math/big) in the design ledger.
package smt

import (
	"fmt"

	"github.com/FuzzingLabs/sierra-analyzer/internal/felt"
)

// Term is a linear combination over variables plus a constant, all
// reduced modulo the Stark prime: sum(coeffs[v] * v) + constant.
type Term struct {
	Coeffs   map[string]felt.Felt
	Constant felt.Felt
}

// ConstTerm returns the constant term c.
func ConstTerm(c felt.Felt) Term { return Term{Constant: c} }

// VarTerm returns the term naming variable v with coefficient 1.
func VarTerm(v string) Term {
	return Term{Coeffs: map[string]felt.Felt{v: felt.FromInt64(1)}}
}

func (t Term) clone() Term {
	c := Term{Coeffs: make(map[string]felt.Felt, len(t.Coeffs)), Constant: t.Constant}
	for k, v := range t.Coeffs {
		c.Coeffs[k] = v
	}
	return c
}

// Add, Sub, Mul combine two terms. Mul only produces an exact linear
// result when at least one operand has no variable coefficients
// (constant-folds); otherwise Mul reports !ok, since the theory is linear
// arithmetic only, and the symbolic executor substitutes a fresh,
// unconstrained variable for the product.
func Add(a, b Term) Term {
	r := a.clone()
	r.Constant = r.Constant.Add(b.Constant)
	for k, v := range b.Coeffs {
		if cur, ok := r.Coeffs[k]; ok {
			r.Coeffs[k] = cur.Add(v)
		} else {
			r.Coeffs[k] = v
		}
	}
	return r
}

func Sub(a, b Term) Term {
	neg := b.clone()
	neg.Constant = felt.Zero().Sub(neg.Constant)
	for k, v := range neg.Coeffs {
		neg.Coeffs[k] = felt.Zero().Sub(v)
	}
	return Add(a, neg)
}

// Mul multiplies a and b when one side is a pure constant (no variable
// coefficients); ok is false for a genuinely nonlinear product.
func Mul(a, b Term) (result Term, ok bool) {
	if len(a.Coeffs) == 0 {
		return scale(b, a.Constant), true
	}
	if len(b.Coeffs) == 0 {
		return scale(a, b.Constant), true
	}
	return Term{}, false
}

func scale(t Term, k felt.Felt) Term {
	r := Term{Coeffs: make(map[string]felt.Felt, len(t.Coeffs)), Constant: t.Constant.Mul(k)}
	for v, c := range t.Coeffs {
		r.Coeffs[v] = c.Mul(k)
	}
	return r
}

// IsConstant reports whether t has no variable coefficients.
func (t Term) IsConstant() bool { return len(t.Coeffs) == 0 }

func (t Term) String() string {
	if t.IsConstant() {
		return t.Constant.String()
	}
	s := ""
	for v, c := range t.Coeffs {
		if s != "" {
			s += " + "
		}
		s += fmt.Sprintf("%s*%s", c, v)
	}
	if !t.Constant.IsZero() {
		s += fmt.Sprintf(" + %s", t.Constant)
	}
	return s
}

// Relation is the comparison a Constraint asserts between its term and
// zero. The executor only ever needs equality and disequality, since
// every branch guard it models is a felt252_is_zero test.
type Relation int

const (
	EqualZero Relation = iota
	NotEqualZero
)

// Constraint is one asserted fact: Term `rel` 0.
type Constraint struct {
	Term Term
	Rel  Relation
}

// Solver is the abstracted push/pop/assert/check-sat/get-value backend
// the symbolic executor drives (spec.md §4.7).
type Solver interface {
	Push()
	Pop()
	Assert(c Constraint)
	CheckSat() (Status, error)
	// GetValue returns a witness value for v from the last satisfying
	// model. Only valid immediately after CheckSat returns Sat.
	GetValue(v string) (felt.Felt, bool)
}

// Status is the result of a CheckSat call.
type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
)

// New returns the concrete from-scratch Solver.
func New() Solver {
	return &linearSolver{}
}

// linearSolver keeps a stack of constraint frames and lazily searches
// for a witness only when CheckSat is called, by substituting each
// unconstrained variable with a small candidate set and checking all
// asserted constraints exactly (arithmetic is exact over the Stark
// prime via math/big, so no rounding/overflow concerns arise).
type linearSolver struct {
	frames [][]Constraint
	model  map[string]felt.Felt
}

func (s *linearSolver) Push() {
	s.frames = append(s.frames, nil)
}

func (s *linearSolver) Pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

func (s *linearSolver) Assert(c Constraint) {
	if len(s.frames) == 0 {
		s.frames = append(s.frames, nil)
	}
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], c)
}

func (s *linearSolver) all() []Constraint {
	var out []Constraint
	for _, f := range s.frames {
		out = append(out, f...)
	}
	return out
}

// candidates tried per free variable, in order: a value forced by an
// equality constraint if one pins it directly, then 0, 1, and a few small
// primes to shake out inequality-only constraints.
var candidateSeeds = []int64{0, 1, 2, 3, 5, 7, 11}

// CheckSat performs a small bounded search: collect the free variables
// across all asserted constraints, then try assignments built from
// candidateSeeds (plus any constant an EqualZero constraint pins
// directly), verifying every constraint exactly.
func (s *linearSolver) CheckSat() (Status, error) {
	cs := s.all()
	if len(cs) == 0 {
		s.model = map[string]felt.Felt{}
		return Sat, nil
	}

	vars := map[string]bool{}
	for _, c := range cs {
		for v := range c.Term.Coeffs {
			vars[v] = true
		}
	}
	var names []string
	for v := range vars {
		names = append(names, v)
	}

	pinned := map[string]felt.Felt{}
	for _, c := range cs {
		if c.Rel == EqualZero && len(c.Term.Coeffs) == 1 {
			for v, coeff := range c.Term.Coeffs {
				if coeff.IsZero() {
					continue
				}
				// coeff*v + k == 0  =>  v == -k/coeff; only exact when
				// coeff == 1 or -1, which covers every guard the
				// executor actually emits (copies and negations).
				if coeff.Equal(felt.FromInt64(1)) {
					pinned[v] = felt.Zero().Sub(c.Term.Constant)
				} else if coeff.Equal(felt.Zero().Sub(felt.FromInt64(1))) {
					pinned[v] = c.Term.Constant
				}
			}
		}
	}

	model, ok := s.search(names, 0, map[string]felt.Felt{}, pinned, cs)
	if !ok {
		return Unsat, nil
	}
	s.model = model
	return Sat, nil
}

func (s *linearSolver) search(names []string, i int, assign, pinned map[string]felt.Felt, cs []Constraint) (map[string]felt.Felt, bool) {
	if i == len(names) {
		if satisfies(cs, assign) {
			full := make(map[string]felt.Felt, len(assign))
			for k, v := range assign {
				full[k] = v
			}
			return full, true
		}
		return nil, false
	}
	v := names[i]
	var tries []felt.Felt
	if p, ok := pinned[v]; ok {
		tries = append(tries, p)
	}
	for _, seed := range candidateSeeds {
		tries = append(tries, felt.FromInt64(seed))
	}
	for _, val := range tries {
		assign[v] = val
		if m, ok := s.search(names, i+1, assign, pinned, cs); ok {
			return m, true
		}
	}
	delete(assign, v)
	return nil, false
}

func satisfies(cs []Constraint, assign map[string]felt.Felt) bool {
	for _, c := range cs {
		val := evaluate(c.Term, assign)
		switch c.Rel {
		case EqualZero:
			if !val.IsZero() {
				return false
			}
		case NotEqualZero:
			if val.IsZero() {
				return false
			}
		}
	}
	return true
}

func evaluate(t Term, assign map[string]felt.Felt) felt.Felt {
	sum := t.Constant
	for v, coeff := range t.Coeffs {
		val, ok := assign[v]
		if !ok {
			val = felt.Zero()
		}
		sum = sum.Add(coeff.Mul(val))
	}
	return sum
}

func (s *linearSolver) GetValue(v string) (felt.Felt, bool) {
	val, ok := s.model[v]
	return val, ok
}
