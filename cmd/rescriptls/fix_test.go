package main

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/fix"
	"rescriptls/internal/protocol"
)

func TestApplyWithProgressJoinsEngineOnEarlyQuit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "App.res")
	if err := os.WriteFile(path, []byte("let x = stateX\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rng := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 8},
		End:   protocol.Position{Line: 0, Character: 14},
	}
	store := codeaction.Store{
		path: {{
			Range: rng,
			Action: protocol.CodeAction{
				Title: "Replace with 'useState'",
				Kind:  protocol.CodeActionQuickFix,
				Edit: &protocol.WorkspaceEdit{
					Changes: map[string][]protocol.TextEdit{
						path: {{Range: rng, NewText: "useState"}},
					},
				},
			},
		}},
	}

	// The UI returning immediately stands in for a ctrl+c quit while
	// the engine is still writing.
	res, applyErr, uiErr := applyWithProgress(store, fix.ApplyOptions{Mode: fix.ApplyModeAll}, []string{path}, func(tea.Model) error {
		return nil
	})
	if uiErr != nil {
		t.Fatal(uiErr)
	}
	if applyErr != nil {
		t.Fatal(applyErr)
	}
	if res == nil || len(res.Applied) != 1 {
		t.Fatalf("expected a complete result after the join, got %+v", res)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "let x = useState\n" {
		t.Fatalf("unexpected content %q", content)
	}
}
