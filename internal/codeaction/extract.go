package codeaction

import (
	"fmt"
	"regexp"
	"strings"

	"rescriptls/internal/protocol"
)

// input is the shared contract every extractor receives: the current
// message line, its index, the full line slice, the owning document, the
// diagnosed range, the diagnostic itself, and the accumulator.
type input struct {
	line  string
	index int
	lines []string
	file  string
	rng   protocol.Range
	diag  protocol.Diagnostic
	store Store
}

type extractor struct {
	name string
	run  func(in input) bool
}

// Tried in priority order; the first extractor that reports a match
// short-circuits the rest for that diagnostic.
var extractors = []extractor{
	{"did-you-mean", didYouMean},
	{"undefined-record-fields", addUndefinedRecordFields},
	{"simple-conversion", simpleConversion},
	{"apply-uncurried", applyUncurried},
	{"add-missing-cases", addMissingCases},
	{"wrap-unwrap-option", wrapUnwrapOption},
}

// Extract scans a diagnostic's message for a known phrasing and, on a
// match, appends one quick-fix action to store under file. Extractor
// panics are recovered, logged, and treated as non-matches so a single
// malformed message can never abort a whole analysis pass.
func Extract(store Store, file string, d protocol.Diagnostic, logf Logf) {
	lines := strings.Split(d.Message, "\n")
	for i, line := range lines {
		for _, ex := range extractors {
			in := input{
				line:  line,
				index: i,
				lines: lines,
				file:  file,
				rng:   d.Range,
				diag:  d,
				store: store,
			}
			if runExtractor(ex, in, logf) {
				return
			}
		}
	}
}

func runExtractor(ex extractor, in input, logf Logf) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			if logf != nil {
				logf("codeaction: extractor %s panicked on %q: %v", ex.name, in.line, r)
			}
			matched = false
		}
	}()
	return ex.run(in)
}

var didYouMeanRe = regexp.MustCompile(`^Hint: Did you mean ([A-Za-z0-9_]+)`)

// didYouMean turns the compiler's identifier suggestion into a rename of
// the diagnosed range.
//
//	Hint: Did you mean useState
func didYouMean(in input) bool {
	line := strings.TrimSpace(in.line)
	if !strings.HasPrefix(line, "Hint: Did you mean ") {
		return false
	}
	m := didYouMeanRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	suggestion := m[1]
	edits := []protocol.TextEdit{{Range: in.rng, NewText: suggestion}}
	in.store.add(in.file, in.rng, quickFix(
		fmt.Sprintf("Replace with '%s'", suggestion),
		in.file, in.diag, true, edits,
	))
	return true
}

const recordFieldsMarker = "Some record fields are undefined:"

// addUndefinedRecordFields inserts the fields the compiler reports as
// missing, each bound to an `assert false` placeholder, right before the
// record's closing brace.
//
//	Some record fields are undefined: name age
//
// The field list wraps onto following lines when long; every remaining
// line of the message contributes field names.
func addUndefinedRecordFields(in input) bool {
	line := strings.TrimSpace(in.line)
	if !strings.HasPrefix(line, recordFieldsMarker) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(line, recordFieldsMarker))
	for _, next := range in.lines[in.index+1:] {
		fields = append(fields, strings.Fields(next)...)
	}
	if len(fields) == 0 {
		return false
	}

	// The formatter puts one field per line in multi-line record
	// literals and a comma-separated list in single-line ones; the
	// inserted text has to match or the result breaks on reformat.
	multiline := in.rng.Start.Line != in.rng.End.Line
	closeCol := clampInt(in.rng.End.Character - 1)

	var edit protocol.TextEdit
	if multiline {
		pad := strings.Repeat(" ", closeCol)
		var b strings.Builder
		for _, field := range fields {
			b.WriteString(pad)
			b.WriteString("  ")
			b.WriteString(field)
			b.WriteString(": assert false,\n")
		}
		b.WriteString(pad)
		b.WriteString("}")
		// Rewrite the closing line wholesale so the brace lands back
		// on its original column.
		edit = protocol.TextEdit{
			Range: protocol.Range{
				Start: protocol.Position{Line: in.rng.End.Line, Character: 0},
				End:   in.rng.End,
			},
			NewText: b.String(),
		}
	} else {
		var b strings.Builder
		for _, field := range fields {
			b.WriteString(", ")
			b.WriteString(field)
			b.WriteString(": assert false")
		}
		at := protocol.Position{Line: in.rng.End.Line, Character: closeCol}
		edit = protocol.TextEdit{
			Range:   protocol.Range{Start: at, End: at},
			NewText: b.String(),
		}
	}

	in.store.add(in.file, in.rng, quickFix(
		"Add missing record fields",
		in.file, in.diag, true, []protocol.TextEdit{edit},
	))
	return true
}

var conversionRe = regexp.MustCompile(`^You can convert (\w+) to (\w+) with ([A-Za-z0-9_.]+)`)

// simpleConversion wraps the diagnosed expression in the conversion
// function the compiler names.
//
//	You can convert int to float with Belt.Float.fromInt.
func simpleConversion(in input) bool {
	line := strings.TrimSpace(in.line)
	m := conversionRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	from, to := m[1], m[2]
	fn := strings.TrimSuffix(m[3], ".")

	openAt := in.rng.Start
	if in.rng.Start == in.rng.End {
		// A zero-width range points just past the token; step the
		// opening edit back one character so the wrapper lands around
		// it instead of inside.
		openAt.Character = clampInt(openAt.Character - 1)
	}
	edits := []protocol.TextEdit{
		{Range: protocol.Range{Start: openAt, End: openAt}, NewText: fn + "("},
		{Range: protocol.Range{Start: in.rng.End, End: in.rng.End}, NewText: ")"},
	}
	in.store.add(in.file, in.rng, quickFix(
		fmt.Sprintf("Convert %s to %s with %s", from, to, fn),
		in.file, in.diag, true, edits,
	))
	return true
}

const uncurriedMarker = "This is an uncurried ReScript function. It must be applied with a dot."

// applyUncurried inserts the uncurried application marker right after
// the call's opening parenthesis, turning fn(args) into fn(. args). The
// diagnosed range covers the callee, so the parenthesis sits one
// character past its end.
func applyUncurried(in input) bool {
	line := strings.TrimSpace(in.line)
	if !strings.HasPrefix(line, uncurriedMarker) {
		return false
	}
	at := protocol.Position{
		Line:      in.rng.End.Line,
		Character: in.rng.End.Character + 1,
	}
	edits := []protocol.TextEdit{
		{Range: protocol.Range{Start: at, End: at}, NewText: ". "},
	}
	in.store.add(in.file, in.rng, quickFix(
		"Apply uncurried function call with dot",
		in.file, in.diag, true, edits,
	))
	return true
}

const missingCasesMarker = "You forgot to handle a possible case here, for example:"

// addMissingCases inserts one match arm per example case the compiler
// prints after an inexhaustive switch.
//
//	You forgot to handle a possible case here, for example:
//	  (`AnotherValue|`Third|`Fourth)
//
// Cases with payload shapes this heuristic cannot lay out (tuples,
// records) make the extractor bail rather than produce a broken edit.
func addMissingCases(in input) bool {
	line := strings.TrimSpace(in.line)
	if !strings.HasPrefix(line, missingCasesMarker) {
		return false
	}
	example := strings.TrimSpace(strings.Join(in.lines[in.index+1:], ""))
	if len(example) < 2 {
		return false
	}
	// Drop the enclosing parenthesis group the compiler prints around
	// the example.
	example = example[1 : len(example)-1]
	// Any parenthesis left means a tuple or constructor payload too
	// complex to reconstruct from prose.
	if strings.Contains(example, "(") {
		return false
	}

	var raw []string
	if strings.Contains(example, "|") {
		raw = strings.Split(example, "|")
	} else {
		raw = []string{example}
	}
	cases := make([]string, 0, len(raw))
	for _, r := range raw {
		if c, ok := normalizeMatchPattern(strings.TrimSpace(r)); ok {
			cases = append(cases, c)
		}
	}
	if len(cases) == 0 {
		return false
	}

	// Arms sit at the same column as the switch's closing brace, which
	// the edit rewrites back onto its original column.
	closeCol := clampInt(in.rng.End.Character - 1)
	pad := strings.Repeat(" ", closeCol)
	arms := make([]string, 0, len(cases))
	for _, c := range cases {
		arms = append(arms, pad+"| "+c+" => assert false")
	}
	edit := protocol.TextEdit{
		Range: protocol.Range{
			Start: protocol.Position{Line: in.rng.End.Line, Character: 0},
			End:   in.rng.End,
		},
		NewText: strings.Join(arms, "\n") + "\n" + pad + "}",
	}
	in.store.add(in.file, in.rng, quickFix(
		"Insert missing cases",
		in.file, in.diag, true, []protocol.TextEdit{edit},
	))
	return true
}

// normalizeMatchPattern rewrites an example case from the compiler's
// notation into source syntax: polymorphic variant backticks become
// hashes, and a single embedded space means constructor plus payload,
// rewritten into call syntax with the payload normalized recursively.
// Braced payloads and multi-payload constructors are rejected.
func normalizeMatchPattern(pattern string) (string, bool) {
	if strings.Contains(pattern, "{") {
		return "", false
	}
	pattern = strings.ReplaceAll(pattern, "`", "#")
	switch strings.Count(pattern, " ") {
	case 0:
		return pattern, true
	case 1:
		head, payload, _ := strings.Cut(pattern, " ")
		inner, ok := normalizeMatchPattern(payload)
		if !ok {
			return "", false
		}
		return head + "(" + inner + ")", true
	default:
		return "", false
	}
}

const (
	hasTypeMarker = "This has type:"
	wantedMarker  = "Somewhere wanted:"
)

var definedAsRe = regexp.MustCompile(`\s*\(defined as\s+[^)]*\)`)

// wrapUnwrapOption handles the type mismatches that are exactly one
// option layer apart.
//
//	This has type: option<string>
//	Somewhere wanted: string
//
// yields a switch unwrapping the value with a type-appropriate default
// for None; the reverse direction wraps the value in Some. Both type
// fragments may span several lines and carry "(defined as ...)" notes.
func wrapUnwrapOption(in input) bool {
	line := strings.TrimSpace(in.line)
	if !strings.HasPrefix(line, hasTypeMarker) {
		return false
	}

	var actualParts, wantedParts []string
	actualParts = append(actualParts, strings.TrimPrefix(line, hasTypeMarker))
	collectingWanted := false
	for _, next := range in.lines[in.index+1:] {
		trimmed := strings.TrimSpace(next)
		if idx := strings.Index(trimmed, wantedMarker); idx >= 0 {
			collectingWanted = true
			wantedParts = append(wantedParts, trimmed[idx+len(wantedMarker):])
			continue
		}
		if collectingWanted {
			wantedParts = append(wantedParts, trimmed)
		} else {
			actualParts = append(actualParts, trimmed)
		}
	}
	if !collectingWanted {
		return false
	}

	actual := normalizeTypeText(actualParts)
	wanted := normalizeTypeText(wantedParts)
	if actual == "" || wanted == "" {
		return false
	}

	switch {
	case actual == "option<"+wanted+">":
		edits := []protocol.TextEdit{
			{
				Range:   protocol.Range{Start: in.rng.Start, End: in.rng.Start},
				NewText: "switch ",
			},
			{
				Range:   protocol.Range{Start: in.rng.End, End: in.rng.End},
				NewText: " { | None => " + defaultValueFor(wanted) + " | Some(v) => v }",
			},
		}
		in.store.add(in.file, in.rng, quickFix(
			"Unwrap optional value",
			in.file, in.diag, true, edits,
		))
		return true
	case wanted == "option<"+actual+">":
		edits := []protocol.TextEdit{
			{
				Range:   protocol.Range{Start: in.rng.Start, End: in.rng.Start},
				NewText: "Some(",
			},
			{
				Range:   protocol.Range{Start: in.rng.End, End: in.rng.End},
				NewText: ")",
			},
		}
		in.store.add(in.file, in.rng, quickFix(
			"Wrap in Some",
			in.file, in.diag, true, edits,
		))
		return true
	}
	return false
}

// normalizeTypeText collapses a multi-line type fragment into a single
// type name: defined-as notes stripped, per-line trailing commas
// dropped, whitespace trimmed.
func normalizeTypeText(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		p = definedAsRe.ReplaceAllString(p, "")
		p = strings.TrimSpace(p)
		p = strings.TrimSuffix(p, ",")
		b.WriteString(p)
	}
	return strings.TrimSpace(b.String())
}

// defaultValueFor picks the None arm's literal when unwrapping an
// option into a bare value.
func defaultValueFor(typeName string) string {
	switch typeName {
	case "string":
		return `"-"`
	case "bool":
		return "false"
	case "int":
		return "-1"
	case "float":
		return "-1."
	default:
		return "assert false"
	}
}

func clampInt(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
