// Package render applies ANSI styling to a decompiled function listing
// for terminal output, using github.com/charmbracelet/lipgloss the way
// the example pack's CLI/TUI code (theRebelliousNerd-codenerd's "nerd"
// command) styles its own rendered text.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/FuzzingLabs/sierra-analyzer/internal/sierra"
)

var (
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

var keywords = []string{"func", "if", "else", "while", "return"}

// Options controls output styling.
type Options struct {
	// NoColor disables styling even when the terminal would otherwise
	// support it, honoring both --no-color and the NO_COLOR convention.
	NoColor bool
}

// ColorDisabled reports whether ANSI styling should be suppressed,
// combining the explicit flag with the NO_COLOR environment variable.
func ColorDisabled(opts Options) bool {
	if opts.NoColor {
		return true
	}
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// Lines renders a function's decompiled listing to a single styled
// string, one line per sierra.DecompiledLine.
func Lines(lines []sierra.DecompiledLine, opts Options) string {
	plain := ColorDisabled(opts)
	var b strings.Builder
	for _, l := range lines {
		text := l.Text
		if !plain {
			text = styleKeywords(text)
		}
		if l.Comment != "" {
			comment := "// " + l.Comment
			if !plain {
				comment = commentStyle.Render(comment)
			}
			text = text + "  " + comment
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Header renders a section title (used ahead of a function's listing).
func Header(title string, opts Options) string {
	if ColorDisabled(opts) {
		return title
	}
	return headerStyle.Render(title)
}

func styleKeywords(line string) string {
	for _, kw := range keywords {
		line = replaceWord(line, kw, keywordStyle.Render(kw))
	}
	return line
}

// replaceWord substitutes whole-word occurrences of word with repl,
// avoiding partial matches inside longer identifiers (e.g. "ifelse").
func replaceWord(line, word, repl string) string {
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(line[i:], word)
		if idx == -1 {
			b.WriteString(line[i:])
			break
		}
		start := i + idx
		end := start + len(word)
		before := start == 0 || !isIdentByte(line[start-1])
		after := end == len(line) || !isIdentByte(line[end])
		b.WriteString(line[i:start])
		if before && after {
			b.WriteString(repl)
		} else {
			b.WriteString(line[start:end])
		}
		i = end
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
