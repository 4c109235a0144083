// Package compilerlog parses the .compiler.log the ReScript build tool
// writes, turning its text blocks into protocol diagnostics whose
// message lines feed the code action extractors.
//
// The log is unversioned prose, so parsing is deliberately forgiving:
// malformed blocks are skipped, never fatal, and the worst outcome of a
// parse miss is a missing diagnostic.
package compilerlog

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"rescriptls/internal/protocol"
)

// Entry is one diagnostic scraped from the log, with the document path
// its location line named.
type Entry struct {
	Path       string
	Diagnostic protocol.Diagnostic
}

// Options tunes parsing.
type Options struct {
	// MaxEntries caps the number of entries returned; zero means no cap.
	MaxEntries int
	// ErrorWarnings lists warning numbers promoted to errors, matching
	// the project's warn-error configuration.
	ErrorWarnings []int
}

const (
	errorHeader  = "We've found a bug for you!"
	syntaxHeader = "Syntax error!"
	fatalHeader  = "FAILED:"
)

var warningHeaderRe = regexp.MustCompile(`^Warning number (\d+)`)

// ParseFile reads and parses a compiler log from disk.
func ParseFile(path string, opts Options) ([]Entry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content, opts), nil
}

// Parse scans log content for diagnostic blocks. A block is a header
// line (error, warning, or syntax error), a location line, and an
// indented message body running until the next header or the #Done
// marker. Text is NFC-normalized first so identifier matching in the
// extractors is stable regardless of how the compiler's input was
// encoded.
func Parse(content []byte, opts Options) []Entry {
	lines := strings.Split(string(norm.NFC.Bytes(content)), "\n")

	promoted := make(map[int]bool, len(opts.ErrorWarnings))
	for _, n := range opts.ErrorWarnings {
		promoted[n] = true
	}

	var entries []Entry
	i := 0
	for i < len(lines) {
		severity, code, ok := headerLine(lines[i], promoted)
		if !ok {
			i++
			continue
		}
		// The location follows the header, usually on the next line,
		// sometimes after a blank one.
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j >= len(lines) {
			break
		}
		loc, locOK := ParseLocation(strings.TrimSpace(lines[j]))
		if !locOK {
			i = j
			continue
		}

		body, next := messageBody(lines, j+1, promoted)
		entries = append(entries, Entry{
			Path: loc.Path,
			Diagnostic: protocol.Diagnostic{
				Range:    loc.Range(),
				Severity: severity,
				Code:     code,
				Source:   "rescript",
				Message:  strings.Join(body, "\n"),
			},
		})
		if opts.MaxEntries > 0 && len(entries) >= opts.MaxEntries {
			return entries
		}
		i = next
	}
	return entries
}

// headerLine classifies a line as a diagnostic block header.
func headerLine(line string, promoted map[int]bool) (severity int, code string, ok bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == errorHeader:
		return protocol.SeverityError, "", true
	case trimmed == syntaxHeader:
		return protocol.SeverityError, "syntax", true
	case strings.HasPrefix(trimmed, fatalHeader):
		return 0, "", false
	}
	if m := warningHeaderRe.FindStringSubmatch(trimmed); m != nil {
		severity = protocol.SeverityWarning
		if n, err := strconv.Atoi(m[1]); err == nil && promoted[n] {
			severity = protocol.SeverityError
		}
		return severity, "warning " + m[1], true
	}
	return 0, "", false
}

// messageBody collects the block's message lines starting at index
// start, stopping at the next header, the next location line, or a
// #Done marker. The two-space indentation and surrounding blank lines
// are stripped; interior blank lines are kept so the extractors see the
// message the way the compiler shaped it.
func messageBody(lines []string, start int, promoted map[int]bool) (body []string, next int) {
	i := start
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#Done(") || strings.HasPrefix(trimmed, "#Start(") {
			break
		}
		if _, _, isHeader := headerLine(line, promoted); isHeader {
			break
		}
		if _, isLoc := ParseLocation(trimmed); isLoc && trimmed != "" {
			break
		}
		body = append(body, strings.TrimPrefix(line, "  "))
		i++
	}
	for len(body) > 0 && strings.TrimSpace(body[0]) == "" {
		body = body[1:]
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	return body, i
}
