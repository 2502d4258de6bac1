// Package pipeline wires the per-file passes (parse, CFG, region
// recovery, decompile, call graph) into the single sequence both CLI
// binaries drive, grounded on the teacher's phased main() (parse ->
// SSA/CFG -> metrics -> callgraph -> write) retargeted from a multi-file
// Go module walk to a single Sierra program.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FuzzingLabs/sierra-analyzer/internal/callgraph"
	"github.com/FuzzingLabs/sierra-analyzer/internal/cfg"
	"github.com/FuzzingLabs/sierra-analyzer/internal/contractclass"
	"github.com/FuzzingLabs/sierra-analyzer/internal/decompile"
	"github.com/FuzzingLabs/sierra-analyzer/internal/progress"
	"github.com/FuzzingLabs/sierra-analyzer/internal/region"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
)

// unimplementedDecoder reports that decoding a contract-class's hex
// sierra_program into text requires the trusted Sierra-decoding routine
// spec.md §4.1 treats as an external collaborator; no such routine ships
// with this toolkit (spec.md Non-goals: "does not re-type-check Sierra").
type unimplementedDecoder struct{}

func (unimplementedDecoder) Decode(_ []string) (string, error) {
	return "", fmt.Errorf("decoding sierra_program requires an external Sierra-decoding collaborator, none configured")
}

// unimplementedFetcher reports that remote contract-class retrieval is
// out of scope (spec.md §1 "network retrieval of remote contract
// classes" is an external collaborator).
type unimplementedFetcher struct{}

func (unimplementedFetcher) Fetch(_, _ string) ([]byte, error) {
	return nil, fmt.Errorf("remote contract-class retrieval requires an external fetch collaborator, none configured")
}

// Decoder and Fetcher are the collaborator seams a caller may override
// (tests supply stubs; the CLIs default to the unimplemented ones above).
var (
	Decoder contractclass.Decoder = unimplementedDecoder{}
	Fetcher contractclass.Fetcher = unimplementedFetcher{}
)

// Source describes where the input program came from, for CLI diagnostics.
type Source struct {
	Path string
	Raw  string
}

// ResolvePath implements --scarb (spec.md §6): locate the single
// .sierra file under ./target/dev relative to the current directory.
func ResolvePath(explicit string, scarb bool) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if !scarb {
		return "", fmt.Errorf("no input file given (use -f/--file or --scarb)")
	}
	matches, err := filepath.Glob(filepath.Join("target", "dev", "*.sierra"))
	if err != nil {
		return "", &sierraerr.IOError{Op: "glob target/dev/*.sierra", Err: err}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("--scarb: no .sierra file found under ./target/dev")
	}
	return matches[0], nil
}

// Load reads path and parses it as a sierra.Program, auto-detecting a
// Starknet contract-class JSON document (spec.md §4.1) versus raw Sierra
// text by the leading non-whitespace byte.
func Load(path string) (*sierra.Program, Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Source{}, &sierraerr.IOError{Op: "read " + path, Err: err}
	}
	raw := string(data)
	src := Source{Path: path, Raw: raw}

	if looksLikeJSON(raw) {
		prog, err := contractclass.Parse(data, Decoder)
		return prog, src, err
	}
	prog, err := sierra.Parse(raw)
	return prog, src, err
}

func looksLikeJSON(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{")
}

// Analyze runs the CFG builder, region recovery, and decompiler renderer
// over every function in prog (spec.md §4.2-§4.4), then builds the call
// graph (spec.md §4.5). prog.Functions is iterated via SplitFunctions so
// each function's statement range is well-defined regardless of
// declaration order.
func Analyze(prog *sierra.Program, prog2 *progress.Progress, includeLibraryCalls bool) (*sierra.CallGraph, error) {
	for _, fr := range prog.SplitFunctions() {
		g, err := cfg.Build(prog, fr.Fn, fr.Start, fr.End)
		if err != nil {
			return nil, err
		}
		cfg.Prune(g)
		prog2.Verbose("built CFG for %s: %d blocks", fr.Fn.Name, len(g.Blocks))

		fr.Fn.Regions = region.Recover(g)
		if err := decompile.Render(prog, fr.Fn); err != nil {
			return nil, err
		}
	}
	prog2.Log("analyzed %d functions", len(prog.Functions))

	cg := callgraph.Build(prog, callgraph.Options{IncludeLibraryCalls: includeLibraryCalls})
	prog2.Log("built call graph: %d edges", len(cg.Edges))
	return cg, nil
}

// FunctionNames returns every function name in prog, for CLI validation
// of --function NAME.
func FunctionNames(prog *sierra.Program) []string {
	names := make([]string, len(prog.Functions))
	for i, fn := range prog.Functions {
		names[i] = fn.Name
	}
	return names
}
