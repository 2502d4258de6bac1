// Command sierra-testgen is the test-generator binary from spec.md §6:
// it runs the bounded symbolic executor over every felt252-only-parameter
// function in a Sierra program or Starknet contract class and prints one
// concrete parameter assignment per feasible path.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/FuzzingLabs/sierra-analyzer/internal/config"
	"github.com/FuzzingLabs/sierra-analyzer/internal/pipeline"
	"github.com/FuzzingLabs/sierra-analyzer/internal/progress"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierraerr"
	"github.com/FuzzingLabs/sierra-analyzer/internal/symex"
)

type exitCode int

const (
	exitOK          exitCode = 0
	exitParseOrIO   exitCode = 1
	exitInvalidArgs exitCode = 2
)

type flags struct {
	file       string
	function   string
	scarb      bool
	verbose    bool
	configPath string
	loopBound  int
}

func main() {
	os.Exit(int(run(os.Args[1:])))
}

func run(args []string) exitCode {
	var f flags
	var code = exitOK

	cmd := &cobra.Command{
		Use:           "sierra-testgen",
		Short:         "Generate concrete inputs per feasible path via bounded symbolic execution",
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
	fl.StringVar(&f.function, "function", "", "restrict to one function")
	fl.BoolVar(&f.scarb, "scarb", false, "locate the Sierra file under ./target/dev/*.sierra")
	fl.BoolVar(&f.verbose, "verbose", false, "log progress to stderr")
	fl.StringVar(&f.configPath, "config", "", "YAML config overriding the symbolic loop bound")
	fl.IntVar(&f.loopBound, "loop-bound", 0, "override the symbolic loop bound K (0 keeps the config/default value)")
}

func execute(cmd *cobra.Command, f flags) (exitCode, error) {
	prog2 := progress.New(f.verbose)
	defer prog2.Sync()

	cfgCfg, err := config.Load(f.configPath)
	if err != nil {
		return exitInvalidArgs, fmt.Errorf("load config: %w", err)
	}
	bound := cfgCfg.SymbolicLoopBound
	if f.loopBound > 0 {
		bound = f.loopBound
	}

	resolved, err := pipeline.ResolvePath(f.file, f.scarb)
	if err != nil {
		return exitInvalidArgs, err
	}
	prog2.Log("loading %s", resolved)
	prog, _, err := pipeline.Load(resolved)
	if err != nil {
		return classifyLoadError(err), err
	}

	if f.function != "" && prog.FunctionByName(f.function) == nil {
		return exitInvalidArgs, fmt.Errorf("unknown function %q", f.function)
	}

	generate(cmd.OutOrStdout(), prog, f, bound, prog2)
	return exitOK, nil
}

// classifyLoadError mirrors sierra-decompile's mapping of spec.md §7's
// parse/load error kinds onto the exit-code contract.
func classifyLoadError(err error) exitCode {
	var pe *sierraerr.ParseError
	var me *sierraerr.ModelError
	var ie *sierraerr.IOError
	if errors.As(err, &pe) || errors.As(err, &me) || errors.As(err, &ie) {
		return exitParseOrIO
	}
	return exitInvalidArgs
}

// generate runs the symbolic executor over every eligible function (in
// name order, for deterministic output) and prints one line per model.
func generate(w io.Writer, prog *sierra.Program, f flags, bound int, prog2 *progress.Progress) {
	frs := prog.SplitFunctions()
	sort.Slice(frs, func(i, j int) bool { return frs[i].Fn.Name < frs[j].Fn.Name })

	for _, fr := range frs {
		if f.function != "" && fr.Fn.Name != f.function {
			continue
		}
		if !symex.Eligible(fr.Fn) {
			prog2.Verbose("skipping %s: not eligible for symbolic execution", fr.Fn.Name)
			continue
		}
		models := symex.Run(prog, fr.Fn, fr.End, symex.Config{LoopBound: bound})
		fmt.Fprintf(w, "%s: %d path(s)\n", fr.Fn.Name, len(models))
		for i, m := range models {
			fmt.Fprintf(w, "  path %d: %s\n", i, formatParams(fr.Fn, m))
		}
	}
}

// formatParams renders a model's parameter assignment as "v0: N, v1: N,
// …" (spec.md §6), annotating partial paths and known return values.
func formatParams(fn *sierra.Function, m symex.Model) string {
	parts := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		val := "?"
		if i < len(m.Params) {
			val = m.Params[i].String()
		}
		parts[i] = fmt.Sprintf("%s: %s", p.Var, val)
	}
	out := joinComma(parts)
	if m.Partial {
		out += fmt.Sprintf(" (partial: %v)", m.Reason)
		return out
	}
	if len(m.Return) > 0 {
		rets := make([]string, len(m.Return))
		for i, r := range m.Return {
			rets[i] = r.String()
		}
		out += fmt.Sprintf(" -> (%s)", joinComma(rets))
	}
	return out
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
