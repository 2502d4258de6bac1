// Package detect implements the detector framework (spec.md §4.6): a
// registry of pure, program-wide checks consulted in registration
// order, each producing a textual report segment plus structured
// findings for tooling to consume.
package detect

import (
	"github.com/FuzzingLabs/sierra-analyzer/internal/config"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

// Finding is one reportable observation tied to a function (and,
// usually, a statement offset within it).
type Finding struct {
	Detector string
	Function string
	Offset   sierra.Offset
	Message  string
}

// Report is one detector's output.
type Report struct {
	ID       string
	Name     string
	Text     string
	Findings []Finding
}

// Context is the fully-analysed program every detector receives: parsed
// statements, per-function CFG/Regions/Decompiled, and the call graph.
// Detectors never mutate it.
type Context struct {
	Prog      *sierra.Program
	CallGraph *sierra.CallGraph
	Config    config.Config
	// SymbolicBound overrides config.Config.SymbolicLoopBound for the
	// "tests" detector when nonzero (mainly for tests of this package).
	SymbolicBound int
}

// Kind classifies what a detector's report represents.
type Kind int

const (
	KindInfo Kind = iota
	KindFinding
)

// Detector is one registry entry. Detectors are pure with respect to
// the Context (spec.md §4.6: "may cache internally").
type Detector interface {
	ID() string
	Name() string
	Description() string
	Kind() Kind
	Run(ctx *Context) (Report, error)
}

// Registry holds detectors in registration order.
type Registry struct {
	detectors []Detector
}

// NewRegistry returns a registry pre-populated with the built-in
// detector set, in the order spec.md §4.6 lists them.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(
		&functionsDetector{},
		&statisticsDetector{},
		&stringsDetector{},
		&controlledLibraryCallDetector{},
		&feltOverflowDetector{},
		&testsDetector{},
	)
	return r
}

// Register appends detectors, preserving call order.
func (r *Registry) Register(ds ...Detector) {
	r.detectors = append(r.detectors, ds...)
}

// All returns the registered detectors in registration order.
func (r *Registry) All() []Detector {
	return r.detectors
}

// ByID returns the detector with the given id, or nil.
func (r *Registry) ByID(id string) Detector {
	for _, d := range r.detectors {
		if d.ID() == id {
			return d
		}
	}
	return nil
}

// Run runs every selected detector (by id) in registration order,
// skipping unknown ids. An empty ids selects every registered detector.
func (r *Registry) Run(ctx *Context, ids []string) ([]Report, error) {
	selected := map[string]bool{}
	for _, id := range ids {
		selected[id] = true
	}
	var reports []Report
	for _, d := range r.detectors {
		if len(ids) > 0 && !selected[d.ID()] {
			continue
		}
		rep, err := d.Run(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
