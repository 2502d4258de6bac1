// Command sierra-decompile is the decompiler binary from spec.md §6: it
// parses a Sierra program or Starknet contract-class, recovers CFGs and
// decompiled pseudo-source, optionally runs detectors, and optionally
// emits CFG/call-graph DOT files.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FuzzingLabs/sierra-analyzer/internal/callgraph"
	"github.com/FuzzingLabs/sierra-analyzer/internal/cfg"
	"github.com/FuzzingLabs/sierra-analyzer/internal/config"
	"github.com/FuzzingLabs/sierra-analyzer/internal/contractclass"
	"github.com/FuzzingLabs/sierra-analyzer/internal/detect"
	"github.com/FuzzingLabs/sierra-analyzer/internal/pipeline"
	"github.com/FuzzingLabs/sierra-analyzer/internal/progress"
	"github.com/FuzzingLabs/sierra-analyzer/internal/render"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
	"github.com/FuzzingLabs/sierra-analyzer/internal/store"
)

// exitCode mirrors spec.md §6's exit-code contract: 0 success, 1
// parse/IO error, 2 invalid arguments, 3 detector internal failure.
type exitCode int

const (
	exitOK             exitCode = 0
	exitParseOrIO      exitCode = 1
	exitInvalidArgs    exitCode = 2
	exitDetectorFailed exitCode = 3
)

type flags struct {
	file            string
	remote          string
	network         string
	noColor         bool
	verbose         bool
	jsonLogs        bool
	detectors       bool
	detectorNames   string
	detectorHelp    bool
	cfgFlag         bool
	cfgOutput       string
	callgraphFlag   bool
	callgraphOutput string
	function        string
	scarb           bool
	configPath      string
	cachePath       string
}

func main() {
	os.Exit(int(run(os.Args[1:])))
}

// run is the real entry point, separated from main so the caller
// (tests, or a future embedder) can inspect the exit code without the
// process actually exiting.
func run(args []string) exitCode {
	var f flags
	var code = exitOK

	cmd := &cobra.Command{
		Use:           "sierra-decompile",
		Short:         "Decompile and analyze a Sierra program or Starknet contract class",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := execute(cmd, f)
			code = c
			return err
		},
	}
	bindFlags(cmd, &f)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == exitOK {
			code = exitInvalidArgs
		}
	}
	return code
}

func bindFlags(cmd *cobra.Command, f *flags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "local Sierra or contract-class file")
	fl.StringVar(&f.remote, "remote", "", "contract class identifier to fetch")
	fl.StringVar(&f.network, "network", "mainnet", "network for --remote: mainnet or sepolia")
	fl.BoolVar(&f.noColor, "no-color", os.Getenv("NO_COLOR") != "", "plain text output (also honors the NO_COLOR env var)")
	fl.BoolVar(&f.verbose, "verbose", false, "emit libfunc prototypes, types, and raw statement offsets")
	fl.BoolVar(&f.jsonLogs, "json-logs", false, "no effect: progress logs are JSON unless --verbose selects development encoding")
	fl.BoolVarP(&f.detectors, "detectors", "d", false, "run all registered detectors")
	fl.StringVar(&f.detectorNames, "detector-names", "", "comma-separated detector ids to restrict to")
	fl.BoolVar(&f.detectorHelp, "detector-help", false, "list registered detectors and exit")
	fl.BoolVar(&f.cfgFlag, "cfg", false, "emit per-function CFG in DOT")
	fl.StringVar(&f.cfgOutput, "cfg-output", "./output_cfg", "directory for --cfg DOT files")
	fl.BoolVar(&f.callgraphFlag, "callgraph", false, "emit call graph in DOT")
	fl.StringVar(&f.callgraphOutput, "callgraph-output", "./output_callgraph", "directory for --callgraph DOT files")
	fl.StringVar(&f.function, "function", "", "restrict CFG/callgraph output to one function")
	fl.BoolVar(&f.scarb, "scarb", false, "locate the Sierra file under ./target/dev/*.sierra")
	fl.StringVar(&f.configPath, "config", "", "YAML config overriding sanitizer set / symbolic loop bound")
	fl.StringVar(&f.cachePath, "cache", "", "analysis cache SQLite file to write results into (input is always parsed)")
}

func execute(cmd *cobra.Command, f flags) (exitCode, error) {
	prog2 := progress.New(f.verbose)
	defer prog2.Sync()

	if f.detectorHelp {
		printDetectorHelp(cmd.OutOrStdout())
		return exitOK, nil
	}

	cfgCfg, err := config.Load(f.configPath)
	if err != nil {
		return exitInvalidArgs, fmt.Errorf("load config: %w", err)
	}

	path, raw, sierraProg, err := resolveInput(f, prog2)
	if err != nil {
		return classifyLoadError(err), err
	}

	includeLibraryCalls := f.detectors || f.detectorNames != ""
	cg, err := pipeline.Analyze(sierraProg, prog2, includeLibraryCalls)
	if err != nil {
		return exitParseOrIO, err
	}

	if f.function != "" && sierraProg.FunctionByName(f.function) == nil {
		return exitInvalidArgs, fmt.Errorf("unknown function %q", f.function)
	}

	if err := cacheResults(f.cachePath, raw, sierraProg, cg, cfgCfg); err != nil {
		prog2.Warn("cache write failed: %v", err)
	}

	printDecompiled(cmd.OutOrStdout(), sierraProg, f)

	if f.cfgFlag {
		if err := emitCFGs(sierraProg, f); err != nil {
			return exitParseOrIO, err
		}
	}
	if f.callgraphFlag {
		if err := emitCallGraph(cg, f); err != nil {
			return exitParseOrIO, err
		}
	}

	if f.detectors || f.detectorNames != "" {
		var ids []string
		if !f.detectors {
			ids = splitCSV(f.detectorNames)
		}
		code, findings, err := runDetectors(cmd.OutOrStdout(), sierraProg, cg, cfgCfg, ids, prog2)
		if err != nil {
			return code, err
		}
		if f.cachePath != "" {
			if err := cacheFindings(f.cachePath, raw, findings); err != nil {
				prog2.Warn("cache findings write failed: %v", err)
			}
		}
	}

	_ = path
	return exitOK, nil
}

func resolveInput(f flags, prog2 *progress.Progress) (path, raw string, prog *sierra.Program, err error) {
	if f.remote != "" {
		network, nerr := contractclass.ParseNetwork(f.network)
		if nerr != nil {
			return "", "", nil, nerr
		}
		data, ferr := pipeline.Fetcher.Fetch(string(network), f.remote)
		if ferr != nil {
			return "", "", nil, &sierraerr.IOError{Op: "fetch remote contract class", Err: ferr}
		}
		p, perr := contractclass.Parse(data, pipeline.Decoder)
		return f.remote, string(data), p, perr
	}

	resolved, err := pipeline.ResolvePath(f.file, f.scarb)
	if err != nil {
		return "", "", nil, err
	}
	prog2.Log("loading %s", resolved)
	p, src, err := pipeline.Load(resolved)
	return resolved, src.Raw, p, err
}

// classifyLoadError maps the error kinds spec.md §7 defines for the
// parse/load path onto the CLI's exit-code contract (spec.md §6): every
// one of them is fatal and reported as a parse/IO failure.
func classifyLoadError(err error) exitCode {
	var pe *sierraerr.ParseError
	var me *sierraerr.ModelError
	var ie *sierraerr.IOError
	if errors.As(err, &pe) || errors.As(err, &me) || errors.As(err, &ie) {
		return exitParseOrIO
	}
	return exitInvalidArgs
}

func cacheResults(path, raw string, prog *sierra.Program, cg *sierra.CallGraph, _ config.Config) error {
	if path == "" {
		return nil
	}
	c, err := store.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:])
	if err := store.StoreProgram(c, hash, raw, prog); err != nil {
		return err
	}
	return store.StoreCallGraph(c, hash, cg)
}

func cacheFindings(path, raw string, findings []detect.Finding) error {
	c, err := store.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:])
	return store.StoreFindings(c, hash, findings)
}

func printDecompiled(w io.Writer, prog *sierra.Program, f flags) {
	opts := render.Options{NoColor: f.noColor}
	fns := append([]*sierra.Function(nil), prog.Functions...)
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	for _, fn := range fns {
		if f.function != "" && fn.Name != f.function {
			continue
		}
		fmt.Fprintln(w, render.Header(fn.Name, opts))
		fmt.Fprint(w, render.Lines(fn.Decompiled, opts))
		if f.verbose {
			fmt.Fprintf(w, "  (entry offset %d, %d params, %d blocks)\n", fn.Entry, len(fn.Params), blockCount(fn))
		}
		fmt.Fprintln(w)
	}
}

func blockCount(fn *sierra.Function) int {
	if fn.CFG == nil {
		return 0
	}
	return len(fn.CFG.Blocks)
}

func emitCFGs(prog *sierra.Program, f flags) error {
	if err := os.MkdirAll(f.cfgOutput, 0o755); err != nil {
		return &sierraerr.IOError{Op: "mkdir " + f.cfgOutput, Err: err}
	}
	for _, fn := range prog.Functions {
		if f.function != "" && fn.Name != f.function {
			continue
		}
		if fn.CFG == nil {
			continue
		}
		outPath := fmt.Sprintf("%s/%s.dot", f.cfgOutput, sanitizeFilename(fn.Name))
		out, err := os.Create(outPath)
		if err != nil {
			return &sierraerr.IOError{Op: "create " + outPath, Err: err}
		}
		err = cfg.WriteDOT(out, fn.CFG)
		out.Close()
		if err != nil {
			return &sierraerr.IOError{Op: "write " + outPath, Err: err}
		}
	}
	return nil
}

func emitCallGraph(cg *sierra.CallGraph, f flags) error {
	if err := os.MkdirAll(f.callgraphOutput, 0o755); err != nil {
		return &sierraerr.IOError{Op: "mkdir " + f.callgraphOutput, Err: err}
	}
	target := cg
	name := "callgraph"
	if f.function != "" {
		target = callgraph.Subgraph(cg, f.function)
		name = sanitizeFilename(f.function)
	}
	outPath := fmt.Sprintf("%s/%s.dot", f.callgraphOutput, name)
	out, err := os.Create(outPath)
	if err != nil {
		return &sierraerr.IOError{Op: "create " + outPath, Err: err}
	}
	defer out.Close()
	if err := callgraph.WriteDOT(out, target); err != nil {
		return &sierraerr.IOError{Op: "write " + outPath, Err: err}
	}
	return nil
}

func runDetectors(w io.Writer, prog *sierra.Program, cg *sierra.CallGraph, cfgCfg config.Config, ids []string, prog2 *progress.Progress) (exitCode, []detect.Finding, error) {
	reg := detect.NewRegistry()
	for _, id := range ids {
		if reg.ByID(id) == nil {
			return exitInvalidArgs, nil, fmt.Errorf("unknown detector %q", id)
		}
	}
	ctx := &detect.Context{Prog: prog, CallGraph: cg, Config: cfgCfg}
	reports, err := reg.Run(ctx, ids)
	if err != nil {
		prog2.Warn("detector failed: %v", err)
		return exitDetectorFailed, nil, &sierraerr.AnalysisError{Detector: "unknown", Function: "", Err: err}
	}
	var findings []detect.Finding
	for _, r := range reports {
		fmt.Fprintf(w, "== %s ==\n%s\n", r.Name, r.Text)
		findings = append(findings, r.Findings...)
	}
	return exitOK, findings, nil
}

func printDetectorHelp(w io.Writer) {
	reg := detect.NewRegistry()
	for _, d := range reg.All() {
		fmt.Fprintf(w, "%-28s [%s] %s\n", d.ID(), kindLabel(d.Kind()), d.Description())
	}
}

func kindLabel(k detect.Kind) string {
	if k == detect.KindFinding {
		return "security"
	}
	return "informational"
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sanitizeFilename(s string) string {
	r := strings.NewReplacer(":", "_", "<", "_", ">", "_", ",", "_", " ", "_", "@", "_")
	return r.Replace(s)
}
