package sierra

import (
	"strconv"
	"strings"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
)

// Parse tokenises and parses Sierra text into a Program. Parsing is
// deterministic: unknown libfunc/type names are preserved verbatim, and
// the grammar is tolerant of whitespace and "//" comments.
//
// Grammar (one declaration/statement per logical line, order fixed):
//
//	type <id> = <long-id> [ attr, attr, ... ] ;
//	libfunc <id> = <long-id> ;
//	<libfunc>(<args>) -> (<outs>) ;                 // single-branch invocation
//	<libfunc>(<args>) { branch branch ... } ;        // multi-branch invocation
//	return(<vals>) ;
//	<name>@<offset>([v]: type, ...) -> (type, ...) ; // function header
//
// where <args>/<outs>/<vals> are comma-separated "[N]" variable refs and a
// branch is "fallthrough(<outs>)" or "<offset>(<outs>)".
func Parse(src string) (*Program, error) {
	toks := lexAll(src)
	p := &parser{toks: toks}
	return p.parseProgram()
}

func lexAll(src string) []token {
	l := newLexer(src)
	var toks []token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	return toks
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) cur() token {
	if p.i >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.i]
}

func (p *parser) peek(k int) token {
	idx := p.i + k
	if idx >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[idx]
}

func (p *parser) advance() token {
	t := p.cur()
	if p.i < len(p.toks) {
		p.i++
	}
	return t
}

func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

// tokenAfterBracketTail returns the token following peek(k) if peek(k) is
// "[", skipping a balanced run of bracketed tokens (a function name's
// "[...]" specialization suffix); otherwise it just returns peek(k).
func (p *parser) tokenAfterBracketTail(k int) token {
	idx := p.i + k
	if idx >= len(p.toks) || p.toks[idx].kind != tokPunct || p.toks[idx].text != "[" {
		return p.peek(k)
	}
	depth := 0
	for j := idx; j < len(p.toks); j++ {
		t := p.toks[j]
		if t.kind == tokPunct && t.text == "[" {
			depth++
		}
		if t.kind == tokPunct && t.text == "]" {
			depth--
			if depth == 0 {
				if j+1 < len(p.toks) {
					return p.toks[j+1]
				}
				return token{kind: tokEOF}
			}
		}
	}
	return token{kind: tokEOF}
}

// parseBracketTail consumes an optional "[...]" specialization suffix
// immediately following a function name and returns its verbatim text
// (e.g. "[expr23]"), or "" if none is present.
func (p *parser) parseBracketTail() string {
	if !(p.cur().kind == tokPunct && p.cur().text == "[") {
		return ""
	}
	var sb strings.Builder
	depth := 0
	for !p.atEOF() {
		t := p.cur()
		if t.kind == tokPunct && t.text == "[" {
			depth++
		}
		sb.WriteString(t.text)
		p.advance()
		if t.kind == tokPunct && t.text == "]" {
			depth--
			if depth == 0 {
				break
			}
		}
	}
	return sb.String()
}

func (p *parser) err(kind sierraerr.ParseKind, msg string) error {
	return &sierraerr.ParseError{Kind: kind, At: p.cur().pos.String(), Msg: msg}
}

func (p *parser) expectPunct(s string) error {
	t := p.cur()
	if t.kind != tokPunct || t.text != s {
		return p.err(sierraerr.MalformedHeader, "expected '"+s+"'")
	}
	p.advance()
	return nil
}

func (p *parser) parseProgram() (*Program, error) {
	prog := &Program{}

	for !p.atEOF() && p.cur().kind == tokIdent && p.cur().text == "type" {
		td, err := p.parseTypeDecl()
		if err != nil {
			return nil, err
		}
		prog.Types = append(prog.Types, td)
	}

	for !p.atEOF() && p.cur().kind == tokIdent && p.cur().text == "libfunc" {
		ld, err := p.parseLibfuncDecl()
		if err != nil {
			return nil, err
		}
		prog.Libfuncs = append(prog.Libfuncs, ld)
	}

	var offset Offset
	for !p.atEOF() {
		// A function header looks like "name@offset(...)", where name may
		// carry a "[...]" specialization suffix (e.g. "fib::fib[expr23]");
		// distinguish it from a statement by lookahead for '@' right after
		// the identifier and its optional bracketed tail.
		if p.cur().kind == tokIdent && p.tokenAfterBracketTail(1).text == "@" {
			break
		}
		stmt, err := p.parseStatement(offset)
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		offset++
	}

	for !p.atEOF() {
		fn, err := p.parseFunctionDecl()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}

	if err := validateOffsets(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func (p *parser) parseTypeDecl() (TypeDeclaration, error) {
	p.advance() // "type"
	if p.cur().kind != tokIdent {
		return TypeDeclaration{}, p.err(sierraerr.MalformedHeader, "expected type identifier")
	}
	id := p.advance().text
	if err := p.expectPunct("="); err != nil {
		return TypeDeclaration{}, err
	}
	longID := p.parseLongID()

	td := TypeDeclaration{ID: id, LongID: longID, Storable: true, Droppable: true, Duplicatable: true}
	if p.cur().kind == tokPunct && p.cur().text == "[" {
		p.advance()
		for !(p.cur().kind == tokPunct && p.cur().text == "]") && !p.atEOF() {
			if p.cur().kind != tokIdent {
				return TypeDeclaration{}, p.err(sierraerr.MalformedHeader, "expected attribute name")
			}
			name := p.advance().text
			if err := p.expectPunct(":"); err != nil {
				return TypeDeclaration{}, err
			}
			val := p.advance().text == "true"
			switch name {
			case "storable":
				td.Storable = val
			case "drop":
				td.Droppable = val
			case "dup":
				td.Duplicatable = val
			case "zero_sized":
				td.ZeroSized = val
			}
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
			}
		}
		p.advance() // "]"
	}
	if err := p.expectPunct(";"); err != nil {
		return TypeDeclaration{}, err
	}
	return td, nil
}

func (p *parser) parseLibfuncDecl() (LibfuncDeclaration, error) {
	p.advance() // "libfunc"
	if p.cur().kind != tokIdent {
		return LibfuncDeclaration{}, p.err(sierraerr.MalformedHeader, "expected libfunc identifier")
	}
	id := p.parseLongID(map[string]bool{"=": true})
	if err := p.expectPunct("="); err != nil {
		return LibfuncDeclaration{}, err
	}
	longID := p.parseLongID()
	if err := p.expectPunct(";"); err != nil {
		return LibfuncDeclaration{}, err
	}
	return LibfuncDeclaration{ID: id, LongID: longID}, nil
}

// longIDStop is the default set of depth-0 terminators for a standalone
// long-id (a type or libfunc declaration's right-hand side).
var longIDStop = map[string]bool{";": true, "[": true}

// longIDStopInList additionally stops at the list separators "," and ")",
// for use when a long-id appears inside a comma-separated list.
var longIDStopInList = map[string]bool{",": true, ")": true}

// longIDStopCall stops at "(", for a libfunc invocation head.
var longIDStopCall = map[string]bool{"(": true}

// parseLongID consumes a (possibly generic, possibly namespaced) type/libfunc
// reference up to the next stop-set punctuation at depth 0, preserving it
// verbatim. stops defaults to longIDStop; pass longIDStopInList when parsing
// a type inside a parameter/return-type list.
func (p *parser) parseLongID(stops ...map[string]bool) string {
	stop := longIDStop
	if len(stops) > 0 {
		stop = stops[0]
	}
	var sb strings.Builder
	depth := 0
	for !p.atEOF() {
		t := p.cur()
		if depth == 0 && t.kind == tokPunct && stop[t.text] {
			break
		}
		if t.kind == tokPunct && t.text == "<" {
			depth++
		}
		if t.kind == tokPunct && t.text == ">" {
			depth--
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.text)
		p.advance()
	}
	return strings.Join(strings.Fields(sb.String()), "")
}

func (p *parser) parseVarRef() (VarID, error) {
	if err := p.expectPunct("["); err != nil {
		return 0, err
	}
	if p.cur().kind != tokNumber {
		return 0, p.err(sierraerr.BadOffset, "expected variable number")
	}
	n, err := strconv.Atoi(p.advance().text)
	if err != nil {
		return 0, p.err(sierraerr.BadOffset, "bad variable number: "+err.Error())
	}
	if err := p.expectPunct("]"); err != nil {
		return 0, err
	}
	return VarID(n), nil
}

func (p *parser) parseVarList() ([]VarID, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var out []VarID
	for !(p.cur().kind == tokPunct && p.cur().text == ")") {
		v, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseStatement(off Offset) (Statement, error) {
	if p.cur().kind != tokIdent {
		return nil, p.err(sierraerr.UnknownStatement, "expected statement")
	}
	if p.cur().text == "return" {
		p.advance()
		vals, err := p.parseVarList()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		return &Return{Off: off, Values: vals}, nil
	}

	libfunc := p.parseLongID(longIDStopCall)
	args, err := p.parseVarList()
	if err != nil {
		return nil, err
	}

	var branches []Branch
	switch {
	case p.cur().kind == tokArrow:
		p.advance()
		outs, err := p.parseVarList()
		if err != nil {
			return nil, err
		}
		branches = []Branch{{Fallthrough: true, Results: outs}}

	case p.cur().kind == tokPunct && p.cur().text == "{":
		p.advance()
		for !(p.cur().kind == tokPunct && p.cur().text == "}") {
			b, err := p.parseBranch()
			if err != nil {
				return nil, err
			}
			branches = append(branches, b)
		}
		p.advance() // "}"

	default:
		return nil, p.err(sierraerr.UnknownStatement, "expected '->' or '{' after invocation arguments")
	}

	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &Invocation{Off: off, Libfunc: libfunc, Args: args, Branches: branches}, nil
}

func (p *parser) parseBranch() (Branch, error) {
	if p.cur().kind == tokIdent && p.cur().text == "fallthrough" {
		p.advance()
		outs, err := p.parseVarList()
		if err != nil {
			return Branch{}, err
		}
		return Branch{Fallthrough: true, Results: outs}, nil
	}
	if p.cur().kind != tokNumber {
		return Branch{}, p.err(sierraerr.BadOffset, "expected branch target offset")
	}
	n, err := strconv.Atoi(p.advance().text)
	if err != nil {
		return Branch{}, p.err(sierraerr.BadOffset, "bad offset: "+err.Error())
	}
	outs, err := p.parseVarList()
	if err != nil {
		return Branch{}, err
	}
	return Branch{Target: Offset(n), Results: outs}, nil
}

func (p *parser) parseFunctionDecl() (*Function, error) {
	if p.cur().kind != tokIdent {
		return nil, p.err(sierraerr.MalformedHeader, "expected function name")
	}
	name := p.advance().text + p.parseBracketTail()
	if err := p.expectPunct("@"); err != nil {
		return nil, p.err(sierraerr.MalformedHeader, "expected '@' after function name")
	}
	if p.cur().kind != tokNumber {
		return nil, p.err(sierraerr.BadOffset, "expected entry offset")
	}
	n, err := strconv.Atoi(p.advance().text)
	if err != nil {
		return nil, p.err(sierraerr.BadOffset, "bad entry offset: "+err.Error())
	}

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []Param
	for !(p.cur().kind == tokPunct && p.cur().text == ")") {
		v, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		typ := p.parseLongID(longIDStopInList)
		params = append(params, Param{Var: v, Type: typ})
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if p.cur().kind != tokArrow {
		return nil, p.err(sierraerr.UnterminatedFunction, "expected '->' in function header")
	}
	p.advance()
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var rets []string
	for !(p.cur().kind == tokPunct && p.cur().text == ")") {
		rets = append(rets, p.parseLongID(longIDStopInList))
		if p.cur().kind == tokPunct && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, p.err(sierraerr.UnterminatedFunction, "expected ';' after function header")
	}

	return &Function{Name: name, Entry: Offset(n), Params: params, RetTypes: rets}, nil
}

// validateOffsets enforces invariants I1-I2: offsets are dense/0-based and
// every branch target is either Fallthrough or references a real offset.
func validateOffsets(prog *Program) error {
	n := len(prog.Statements)
	for i, s := range prog.Statements {
		if int(s.Offset()) != i {
			return &sierraerr.ModelError{Offset: i, Msg: "statement offsets must be dense and 0-based"}
		}
		if inv, ok := s.(*Invocation); ok {
			for _, b := range inv.Branches {
				if !b.Fallthrough && (int(b.Target) < 0 || int(b.Target) >= n) {
					return &sierraerr.ModelError{Offset: i, Msg: "branch target out of range"}
				}
			}
		}
	}
	for _, fn := range prog.Functions {
		if int(fn.Entry) < 0 || int(fn.Entry) >= n {
			return &sierraerr.ModelError{Offset: int(fn.Entry), Msg: "function entry out of range"}
		}
	}
	return nil
}
