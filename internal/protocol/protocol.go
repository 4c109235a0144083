// Package protocol defines the LSP data structures shared between the
// server, the code action extractors, and the fix engine.
//
// Only the subset of the protocol rescriptls actually speaks is modelled
// here. Positions follow the LSP convention: zero-based lines, zero-based
// UTF-16 character offsets, ranges half-open.
package protocol

// Position is a zero-based line/character location in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span of text in a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit replaces Range with NewText. A zero-width range inserts.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Diagnostic severities, per the LSP numbering.
const (
	SeverityError   = 1
	SeverityWarning = 2
	SeverityInfo    = 3
	SeverityHint    = 4
)

// Diagnostic is a compiler-reported issue. Message holds the raw
// multi-line prose emitted by the compiler; the code action extractors
// pattern-match against it line by line.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Code     string `json:"code,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

// CodeActionKind classifies a code action for client-side filtering.
type CodeActionKind string

// CodeActionQuickFix is the base kind for quick-fix actions, the only
// kind this tool produces.
const CodeActionQuickFix CodeActionKind = "quickfix"

// WorkspaceEdit maps document paths to the edits to apply in them.
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}

// CodeAction is a suggested edit resolving one or more diagnostics.
type CodeAction struct {
	Title       string         `json:"title"`
	Kind        CodeActionKind `json:"kind,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	IsPreferred bool           `json:"isPreferred,omitempty"`
	Edit        *WorkspaceEdit `json:"edit,omitempty"`
}

// Before reports whether p precedes q in document order.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Overlaps reports whether two ranges share at least one position.
// Touching ranges (one ending where the other starts) do not overlap.
func (r Range) Overlaps(o Range) bool {
	if r.Start == r.End {
		return !r.Start.Before(o.Start) && r.Start.Before(o.End)
	}
	if o.Start == o.End {
		return !o.Start.Before(r.Start) && o.Start.Before(r.End)
	}
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}
