package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

func TestNoColorSuppressesAnsiCodes(t *testing.T) {
	lines := []sierra.DecompiledLine{{Text: "func pkg::f() {"}, {Text: "return (v0)"}}
	out := Lines(lines, Options{NoColor: true})
	require.False(t, strings.Contains(out, "\x1b["))
	require.Contains(t, out, "func pkg::f() {")
}

func TestCommentAppendedWithMarker(t *testing.T) {
	lines := []sierra.DecompiledLine{{Text: "v0 = 72", Comment: `"H"`}}
	out := Lines(lines, Options{NoColor: true})
	require.Contains(t, out, `// "H"`)
}

func TestReplaceWordAvoidsPartialMatches(t *testing.T) {
	out := replaceWord("ifelse if x", "if", "<IF>")
	require.Equal(t, "ifelse <IF> x", out)
}
