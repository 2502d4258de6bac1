// Package sierraerr defines the typed error kinds shared across the
// pipeline (spec.md §7): ParseError and ModelError are fatal, SymbolicError
// is captured per path and never aborts the run, AnalysisError reports a
// failed detector (see its doc for what that stops), IOError surfaces
// collaborator failures unchanged.
package sierraerr

import "fmt"

// ParseKind classifies a ParseError.
type ParseKind int

const (
	MalformedHeader ParseKind = iota
	UnknownStatement
	UnterminatedFunction
	BadOffset
)

func (k ParseKind) String() string {
	switch k {
	case MalformedHeader:
		return "malformed_header"
	case UnknownStatement:
		return "unknown_statement"
	case UnterminatedFunction:
		return "unterminated_function"
	case BadOffset:
		return "bad_offset"
	default:
		return "unknown"
	}
}

// ParseError is fatal for the affected file; the caller decides recovery.
type ParseError struct {
	Kind ParseKind
	At   string // source position, "line:col"
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s) at %s: %s", e.Kind, e.At, e.Msg)
}

// ModelError reports an internal invariant violation, e.g. a branch target
// that references an offset outside the program.
type ModelError struct {
	Offset int
	Msg    string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error at offset %d: %s", e.Offset, e.Msg)
}

// AnalysisError reports a detector failure. detect.Registry.Run returns
// at the first failing detector, so the detectors after it are not run;
// sierra-decompile then prints no detector reports and exits with code 3.
type AnalysisError struct {
	Detector string
	Function string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("detector %q failed on %s: %v", e.Detector, e.Function, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// SymbolicReason classifies why a symbolic-execution path terminated
// without reaching a Return.
type SymbolicReason int

const (
	Unsupported SymbolicReason = iota
	LoopBoundReached
	SolverTimeout
	SolverUnknown
)

func (r SymbolicReason) String() string {
	switch r {
	case Unsupported:
		return "unsupported"
	case LoopBoundReached:
		return "loop_bound_reached"
	case SolverTimeout:
		return "solver_timeout"
	case SolverUnknown:
		return "solver_unknown"
	default:
		return "unknown"
	}
}

// SymbolicError reports why one path of a symbolic-execution run is
// partial rather than complete. It is never fatal: the path is reported
// as partial and the search continues with the rest of the worklist.
type SymbolicError struct {
	Reason  SymbolicReason
	Libfunc string // set when Reason == Unsupported
	Func    string
}

func (e *SymbolicError) Error() string {
	if e.Reason == Unsupported {
		return fmt.Sprintf("%s: unsupported libfunc %q in %s", e.Reason, e.Libfunc, e.Func)
	}
	return fmt.Sprintf("%s in %s", e.Reason, e.Func)
}

// IOError wraps a failure from an external collaborator (file read,
// remote fetch) and surfaces it unchanged.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("io error during %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
