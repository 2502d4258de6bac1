package decompile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/cfg"
	"github.com/FuzzingLabs/sierra-analyzer/internal/region"
	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

// addOneProgram models:
//
//	0: felt252_add(v0, v0) -> (v1)   [libfunc0 = felt252_add]
//	1: return(v1)
func addOneProgram(t *testing.T) (*sierra.Program, *sierra.Function) {
	t.Helper()
	stmts := []sierra.Statement{
		&sierra.Invocation{
			Off:     0,
			Libfunc: "libfunc0",
			Args:    []sierra.VarID{0, 0},
			Branches: []sierra.Branch{
				{Fallthrough: true, Results: []sierra.VarID{1}},
			},
		},
		&sierra.Return{Off: 1, Values: []sierra.VarID{1}},
	}
	fn := &sierra.Function{
		Name:     "pkg::double",
		Entry:    0,
		Params:   []sierra.Param{{Var: 0, Type: "felt252"}},
		RetTypes: []string{"felt252"},
	}
	prog := &sierra.Program{
		Libfuncs:   []sierra.LibfuncDeclaration{{ID: "libfunc0", LongID: "felt252_add"}},
		Statements: stmts,
		Functions:  []*sierra.Function{fn},
	}
	return prog, fn
}

func TestRenderStraightLineAddition(t *testing.T) {
	prog, fn := addOneProgram(t)
	_, err := cfg.Build(prog, fn, 0, 2)
	require.NoError(t, err)
	fn.Regions = region.Recover(fn.CFG)

	require.NoError(t, Render(prog, fn))

	var text []string
	for _, l := range fn.Decompiled {
		text = append(text, strings.TrimSpace(l.Text))
	}
	joined := strings.Join(text, "\n")
	require.Contains(t, joined, "v1 = v0 + v0")
	require.Contains(t, joined, "return (v1)")
	require.Contains(t, joined, "func pkg::double(v0: felt252) -> (felt252) {")
}

func TestRenderRejectsMissingPasses(t *testing.T) {
	_, fn := addOneProgram(t)
	err := Render(&sierra.Program{}, fn)
	require.Error(t, err)
}
