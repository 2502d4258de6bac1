package sierra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexKinds(src string) []tokenKind {
	toks := lexAll(src)
	kinds := make([]tokenKind, len(toks))
	for i, t := range toks {
		kinds[i] = t.kind
	}
	return kinds
}

func TestLexerFoldsNamespacedIdentifier(t *testing.T) {
	toks := lexAll("pkg::fib@0")
	require.Equal(t, tokIdent, toks[0].kind)
	require.Equal(t, "pkg::fib", toks[0].text)
	require.Equal(t, tokPunct, toks[1].kind)
	require.Equal(t, "@", toks[1].text)
}

func TestLexerLeavesBracketTailAsSeparateTokens(t *testing.T) {
	// The lexer itself doesn't know a "[...]" suffix belongs to the
	// preceding name; that's the parser's job (parseBracketTail), since
	// "[" also opens a standalone variable reference like "[0]".
	toks := lexAll("fib::fib[expr23]@9")
	require.Equal(t, tokIdent, toks[0].kind)
	require.Equal(t, "fib::fib", toks[0].text)
	require.Equal(t, "[", toks[1].text)
	require.Equal(t, tokIdent, toks[2].kind)
	require.Equal(t, "expr23", toks[2].text)
	require.Equal(t, "]", toks[3].text)
	require.Equal(t, "@", toks[4].text)
}

func TestLexerHexNumber(t *testing.T) {
	toks := lexAll("0x5468 72")
	require.Equal(t, tokNumber, toks[0].kind)
	require.Equal(t, "0x5468", toks[0].text)
	require.Equal(t, tokNumber, toks[1].kind)
	require.Equal(t, "72", toks[1].text)
}

func TestLexerArrowAndPunct(t *testing.T) {
	toks := lexAll("() -> (){};,:<>@")
	require.Equal(t, []tokenKind{
		tokPunct, tokPunct, tokArrow, tokPunct, tokPunct,
		tokPunct, tokPunct, tokPunct, tokPunct, tokPunct,
		tokPunct, tokPunct, tokPunct, tokEOF,
	}, lexKinds("() -> (){};,:<>@"))
	require.Equal(t, "->", toks[2].text)
}

func TestLexerSkipsLineComments(t *testing.T) {
	toks := lexAll("foo // a comment about @[]\nbar")
	require.Equal(t, "foo", toks[0].text)
	require.Equal(t, "bar", toks[1].text)
	require.Equal(t, tokEOF, toks[2].kind)
}

func TestLexerStringLiteral(t *testing.T) {
	toks := lexAll(`"hello world"`)
	require.Equal(t, tokString, toks[0].kind)
	require.Equal(t, "hello world", toks[0].text)
}
