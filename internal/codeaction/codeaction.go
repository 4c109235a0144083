// Package codeaction derives quick-fix code actions from the prose the
// ReScript compiler prints for a diagnostic.
//
// The compiler's messages are unversioned free text, so everything here
// is a scraper over known phrasings: each extractor recognizes one fixed
// message prefix and synthesizes the edit that resolves the diagnosed
// problem. Extractors are tried in a fixed priority order and the first
// match wins, so a diagnostic yields at most one action.
//
// Extractors are pure: all state lives in the caller-owned Store, which
// is rebuilt fresh for every analysis pass.
package codeaction

import (
	"os"

	"rescriptls/internal/protocol"
)

// Entry pairs a produced action with the range of the diagnostic that
// produced it, so the server can answer codeAction requests by overlap.
type Entry struct {
	Range  protocol.Range
	Action protocol.CodeAction
	// OldText is the document text at Range when the diagnostic was
	// captured. Application checks it against the current file so edits
	// from a stale compiler log never land on rewritten code. Empty
	// means no guard was captured.
	OldText string
}

// Store accumulates actions per document path over one analysis pass.
// It is append-only; callers own its lifecycle.
type Store map[string][]Entry

// NewStore returns an empty accumulator.
func NewStore() Store {
	return make(Store)
}

// Logf is the logging contract for the dispatcher. A nil Logf discards.
type Logf func(format string, args ...any)

func (s Store) add(file string, rng protocol.Range, action protocol.CodeAction) {
	s[file] = append(s[file], Entry{Range: rng, Action: action})
}

// CaptureGuards records the text currently at each entry's diagnosed
// range. readFile defaults to os.ReadFile; unreadable files leave their
// entries unguarded.
func (s Store) CaptureGuards(readFile func(string) ([]byte, error)) {
	if readFile == nil {
		readFile = os.ReadFile
	}
	for path, entries := range s {
		content, err := readFile(path)
		if err != nil {
			continue
		}
		for i := range entries {
			start := protocol.OffsetForPosition(content, entries[i].Range.Start)
			end := protocol.OffsetForPosition(content, entries[i].Range.End)
			if start <= end {
				entries[i].OldText = string(content[start:end])
			}
		}
	}
}

// quickFix assembles the standard quick-fix action shape all extractors
// share: single-document workspace edit, tagged with its diagnostic.
func quickFix(title string, file string, d protocol.Diagnostic, preferred bool, edits []protocol.TextEdit) protocol.CodeAction {
	return protocol.CodeAction{
		Title:       title,
		Kind:        protocol.CodeActionQuickFix,
		Diagnostics: []protocol.Diagnostic{d},
		IsPreferred: preferred,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[string][]protocol.TextEdit{file: edits},
		},
	}
}
