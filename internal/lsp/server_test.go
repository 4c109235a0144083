package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/driver"
	"rescriptls/internal/project"
	"rescriptls/internal/protocol"
)

func frame(t *testing.T, body string) string {
	t.Helper()
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func readResponses(t *testing.T, out *bytes.Buffer) []rpcMessage {
	t.Helper()
	r := bufio.NewReader(out)
	var msgs []rpcMessage
	for {
		payload, err := readMessage(r)
		if err != nil {
			break
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestServerLifecycle(t *testing.T) {
	input := frame(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`) +
		frame(t, `{"jsonrpc":"2.0","method":"initialized"}`) +
		frame(t, `{"jsonrpc":"2.0","id":2,"method":"shutdown"}`) +
		frame(t, `{"jsonrpc":"2.0","method":"exit"}`)

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, ServerOptions{})
	err := srv.Run(context.Background())
	if !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}

	msgs := readResponses(t, &out)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(msgs))
	}
	var init initializeResult
	if err := json.Unmarshal(msgs[0].Result, &init); err != nil {
		t.Fatalf("failed to parse initialize result: %v", err)
	}
	if init.Capabilities.CodeActionProvider == nil {
		t.Fatalf("expected codeActionProvider capability")
	}
	kinds := init.Capabilities.CodeActionProvider.CodeActionKinds
	if len(kinds) != 1 || kinds[0] != protocol.CodeActionQuickFix {
		t.Fatalf("unexpected code action kinds: %v", kinds)
	}
	if !init.Capabilities.TextDocumentSync.OpenClose {
		t.Fatalf("expected openClose sync")
	}
}

func TestServerExitWithoutShutdown(t *testing.T) {
	input := frame(t, `{"jsonrpc":"2.0","method":"exit"}`)
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, ServerOptions{})
	err := srv.Run(context.Background())
	if !errors.Is(err, ErrExitWithoutShutdown) {
		t.Fatalf("expected ErrExitWithoutShutdown, got %v", err)
	}
}

func TestServerRejectsUnknownRequest(t *testing.T) {
	input := frame(t, `{"jsonrpc":"2.0","id":7,"method":"textDocument/hover","params":{}}`)
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, ServerOptions{})
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	msgs := readResponses(t, &out)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 response, got %d", len(msgs))
	}
	if msgs[0].Error == nil || msgs[0].Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", msgs[0].Error)
	}
}

func TestServerDidSaveSchedulesAnalysis(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "rescript.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	analyzed := make(chan string, 1)
	analyze := func(ctx context.Context, r string, settings project.Settings, opts driver.Options) (*driver.Result, error) {
		analyzed <- r
		return &driver.Result{Actions: codeaction.NewStore()}, nil
	}

	docURI := pathToURI(filepath.Join(root, "src", "App.res"))
	input := frame(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"rootUri":%q}}`, pathToURI(root))) +
		frame(t, fmt.Sprintf(`{"jsonrpc":"2.0","method":"textDocument/didSave","params":{"textDocument":{"uri":%q}}}`, docURI)) +
		frame(t, `{"jsonrpc":"2.0","id":2,"method":"shutdown"}`) +
		frame(t, `{"jsonrpc":"2.0","method":"exit"}`)

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, ServerOptions{
		Debounce: time.Millisecond,
		Analyze:  analyze,
	})
	if err := srv.Run(context.Background()); !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}

	select {
	case got := <-analyzed:
		if got != root {
			t.Fatalf("analyzed root %q, want %q", got, root)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("analysis was not scheduled after didSave")
	}
}

func TestCollectActionsFiltersByRange(t *testing.T) {
	mk := func(startLine, startChar, endLine, endChar int, title string) codeaction.Entry {
		rng := protocol.Range{
			Start: protocol.Position{Line: startLine, Character: startChar},
			End:   protocol.Position{Line: endLine, Character: endChar},
		}
		return codeaction.Entry{
			Range:  rng,
			Action: protocol.CodeAction{Title: title, Kind: protocol.CodeActionQuickFix},
		}
	}
	entries := []codeaction.Entry{
		mk(1, 2, 1, 8, "first"),
		mk(5, 0, 5, 4, "second"),
		mk(9, 3, 9, 3, "zero width"),
	}

	got := collectActions(entries, protocol.Range{
		Start: protocol.Position{Line: 1, Character: 4},
		End:   protocol.Position{Line: 1, Character: 4},
	})
	if len(got) != 1 || got[0].Title != "first" {
		t.Fatalf("expected cursor inside first action, got %+v", got)
	}

	got = collectActions(entries, protocol.Range{
		Start: protocol.Position{Line: 9, Character: 3},
		End:   protocol.Position{Line: 9, Character: 3},
	})
	if len(got) != 1 || got[0].Title != "zero width" {
		t.Fatalf("expected zero-width match at same position, got %+v", got)
	}

	got = collectActions(entries, protocol.Range{
		Start: protocol.Position{Line: 20, Character: 0},
		End:   protocol.Position{Line: 20, Character: 5},
	})
	if len(got) != 0 {
		t.Fatalf("expected no actions outside any range, got %+v", got)
	}
}

func TestURIWindowsDrive(t *testing.T) {
	path := uriToPath("file:///C:/proj/src/App.res")
	if path != filepath.FromSlash("C:/proj/src/App.res") {
		t.Fatalf("unexpected path %q", path)
	}
	if uri := pathToURI(path); uri != "file:///C:/proj/src/App.res" {
		t.Fatalf("unexpected uri %q", uri)
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := uriToPath("file:///tmp/proj/src/App.res")
	if path == "" || !strings.HasSuffix(path, "App.res") {
		t.Fatalf("unexpected path: %q", path)
	}
	uri := pathToURI(path)
	if uriToPath(uri) != path {
		t.Fatalf("round trip mismatch: %q vs %q", uriToPath(uri), path)
	}
}
