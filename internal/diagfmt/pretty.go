// Package diagfmt renders scraped diagnostics and their quick fixes for
// terminal output.
package diagfmt

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/compilerlog"
	"rescriptls/internal/protocol"
)

// PrettyOpts configures rendering.
type PrettyOpts struct {
	// Color enables ANSI styling.
	Color bool
	// ShowFixes lists the quick fixes derived for each diagnostic.
	ShowFixes bool
	// ReadFile loads a document for source snippets; defaults to
	// os.ReadFile. Read failures just omit the snippet.
	ReadFile func(path string) ([]byte, error)
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	pathColor    = color.New(color.FgCyan)
	fixColor     = color.New(color.FgGreen)
)

// Pretty writes one block per diagnostic:
//
//	path:line:col: ERROR: first message line
//	  let x = stateX
//	          ^~~~~~
//	  fix: Replace with 'useState'
func Pretty(w io.Writer, entries []compilerlog.Entry, actions codeaction.Store, opts PrettyOpts) {
	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	for _, entry := range entries {
		writeHeader(w, entry, opts)
		writeSnippet(w, entry, readFile)
		if opts.ShowFixes {
			writeFixes(w, entry, actions, opts)
		}
		fmt.Fprintln(w)
	}
}

func writeHeader(w io.Writer, entry compilerlog.Entry, opts PrettyOpts) {
	d := entry.Diagnostic
	label := "ERROR"
	labelColor := errorColor
	if d.Severity == protocol.SeverityWarning {
		label = "WARNING"
		labelColor = warningColor
	}
	location := fmt.Sprintf("%s:%d:%d",
		entry.Path, d.Range.Start.Line+1, d.Range.Start.Character+1)
	summary := d.Message
	if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
		summary = summary[:idx]
	}
	if opts.Color {
		fmt.Fprintf(w, "%s: %s: %s\n", pathColor.Sprint(location), labelColor.Sprint(label), summary)
		return
	}
	fmt.Fprintf(w, "%s: %s: %s\n", location, label, summary)
}

// writeSnippet prints the first diagnosed source line with a caret
// underline. Underline math uses display widths so wide runes in the
// source keep the carets under the right columns.
func writeSnippet(w io.Writer, entry compilerlog.Entry, readFile func(string) ([]byte, error)) {
	content, err := readFile(entry.Path)
	if err != nil {
		return
	}
	lines := strings.Split(string(content), "\n")
	d := entry.Diagnostic
	if d.Range.Start.Line >= len(lines) {
		return
	}
	line := lines[d.Range.Start.Line]
	fmt.Fprintf(w, "  %s\n", line)

	startCol := d.Range.Start.Character
	endCol := d.Range.End.Character
	if d.Range.End.Line != d.Range.Start.Line || endCol <= startCol {
		endCol = startCol + 1
	}
	// Columns are UTF-16 units; resolve them to byte offsets before
	// taking display widths or the carets drift past astral runes.
	lineBytes := []byte(line)
	startOff := protocol.OffsetForPosition(lineBytes, protocol.Position{Line: 0, Character: startCol})
	endOff := protocol.OffsetForPosition(lineBytes, protocol.Position{Line: 0, Character: endCol})
	prefix := runewidth.StringWidth(string(lineBytes[:startOff]))
	marked := runewidth.StringWidth(string(lineBytes[startOff:endOff]))
	if marked < 1 {
		marked = 1
	}
	fmt.Fprintf(w, "  %s^%s\n", strings.Repeat(" ", prefix), strings.Repeat("~", marked-1))
}

func writeFixes(w io.Writer, entry compilerlog.Entry, actions codeaction.Store, opts PrettyOpts) {
	for _, e := range actions[entry.Path] {
		if e.Range != entry.Diagnostic.Range {
			continue
		}
		title := e.Action.Title
		if opts.Color {
			title = fixColor.Sprint(title)
		}
		fmt.Fprintf(w, "  fix: %s\n", title)
	}
}
