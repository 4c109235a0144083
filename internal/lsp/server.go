// Package lsp serves rescriptls quick fixes over stdio JSON-RPC.
//
// The server does not analyze source itself: it watches the compiler
// log the ReScript build writes, republishes its diagnostics, and
// answers textDocument/codeAction from the actions the extractors
// derived for them.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/driver"
	"rescriptls/internal/project"
	"rescriptls/internal/protocol"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// AnalyzeFunc runs one analysis pass for a project root.
type AnalyzeFunc func(ctx context.Context, root string, settings project.Settings, opts driver.Options) (*driver.Result, error)

// ServerOptions configures server behavior.
type ServerOptions struct {
	Debounce time.Duration
	Analyze  AnalyzeFunc
	Trace    bool
}

// Server handles stdio JSON-RPC for the rescriptls language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	logger *log.Logger

	mu            sync.Mutex
	openDocs      map[string]struct{}
	published     map[string]struct{}
	actions       codeaction.Store
	root          string
	settings      project.Settings
	debounceTimer *time.Timer

	debounce          time.Duration
	analyze           AnalyzeFunc
	trace             bool
	shutdownRequested bool
	baseCtx           context.Context
}

// NewServer constructs a new server reading from in and writing to out.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	analyze := opts.Analyze
	if analyze == nil {
		analyze = driver.Analyze
	}
	return &Server{
		in:        bufio.NewReader(in),
		out:       bufio.NewWriter(out),
		logger:    log.New(os.Stderr, "rescriptls: ", log.LstdFlags),
		openDocs:  make(map[string]struct{}),
		published: make(map[string]struct{}),
		actions:   codeaction.NewStore(),
		debounce:  debounce,
		analyze:   analyze,
		trace:     opts.Trace,
	}
}

// Run serves requests until shutdown or EOF.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		s.shutdownRequested = true
		return s.sendResult(msg.ID, nil)
	case "exit":
		if s.shutdownRequested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "$/cancelRequest", "workspace/didChangeConfiguration":
		return nil
	default:
		if len(msg.ID) != 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "unhandled method "+msg.Method)
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) != 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid initialize params")
		}
	}
	rootPath := params.RootPath
	if params.RootURI != "" {
		rootPath = uriToPath(params.RootURI)
	}
	if rootPath == "" && len(params.WorkspaceFolders) > 0 {
		rootPath = uriToPath(params.WorkspaceFolders[0].URI)
	}

	settings := project.DefaultSettings()
	root := rootPath
	if rootPath != "" {
		if found, ok, err := project.FindRoot(rootPath); err == nil && ok {
			root = found
		}
		if loaded, err := project.LoadSettings(root); err == nil {
			settings = loaded
		} else {
			s.logf("settings: %v", err)
		}
	}

	s.mu.Lock()
	s.root = root
	s.settings = settings
	if settings.Trace {
		s.trace = true
	}
	if settings.DebounceMs > 0 {
		s.debounce = time.Duration(settings.DebounceMs) * time.Millisecond
	}
	s.mu.Unlock()

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    1,
				Save:      saveOptions{IncludeText: false},
			},
			CodeActionProvider: &codeActionOptions{
				CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionQuickFix},
			},
		},
	}
	return s.sendResult(msg.ID, result)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.mu.Lock()
	s.openDocs[params.TextDocument.URI] = struct{}{}
	s.mu.Unlock()
	s.scheduleAnalysis()
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	// Unsaved edits cannot move the compiler's diagnostics; the next
	// build refreshes them. Nothing to do until then.
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err == nil {
		s.tracef("didSave %s", params.TextDocument.URI)
	}
	s.scheduleAnalysis()
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.mu.Lock()
	delete(s.openDocs, params.TextDocument.URI)
	s.mu.Unlock()
	return nil
}

func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid codeAction params")
	}
	path := uriToPath(params.TextDocument.URI)

	s.mu.Lock()
	entries := append([]codeaction.Entry(nil), s.actions[path]...)
	s.mu.Unlock()

	result := collectActions(entries, params.Range)
	return s.sendResult(msg.ID, result)
}

// collectActions filters stored actions to those whose diagnostic range
// touches the requested range.
func collectActions(entries []codeaction.Entry, rng protocol.Range) []protocol.CodeAction {
	result := make([]protocol.CodeAction, 0, len(entries))
	for _, e := range entries {
		if e.Range.Overlaps(rng) || e.Range == rng || e.Range.Start == rng.Start {
			result = append(result, e.Action)
		}
	}
	return result
}

func (s *Server) scheduleAnalysis() {
	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, s.runAnalysis)
	s.mu.Unlock()
}

func (s *Server) runAnalysis() {
	s.mu.Lock()
	root := s.root
	settings := s.settings
	s.mu.Unlock()
	if root == "" {
		return
	}

	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := s.analyze(ctx, root, settings, driver.Options{
		MaxDiagnostics: settings.MaxDiagnostics,
		ErrorWarnings:  settings.ErrorWarnings,
		Logf:           s.tracef,
	})
	if err != nil {
		// A missing log just means the build has not run yet.
		s.tracef("analysis skipped: %v", err)
		s.clearPublishedDiagnostics()
		return
	}

	grouped := make(map[string][]protocol.Diagnostic)
	for _, entry := range result.Entries {
		uri := pathToURI(entry.Path)
		if uri == "" {
			continue
		}
		grouped[uri] = append(grouped[uri], entry.Diagnostic)
	}

	s.mu.Lock()
	s.actions = result.Actions
	prev := s.published
	s.published = make(map[string]struct{}, len(grouped))
	for uri := range grouped {
		s.published[uri] = struct{}{}
	}
	s.mu.Unlock()

	for uri, diags := range grouped {
		if err := s.sendPublish(uri, diags); err != nil {
			s.logf("failed to publish diagnostics: %v", err)
		}
	}
	for uri := range prev {
		if _, ok := grouped[uri]; ok {
			continue
		}
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	prev := s.published
	s.published = make(map[string]struct{})
	s.actions = codeaction.NewStore()
	s.mu.Unlock()
	for uri := range prev {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
}

func (s *Server) sendPublish(uri string, diags []protocol.Diagnostic) error {
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

func (s *Server) sendNotification(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.send(rpcMessage{JSONRPC: "2.0", Method: method, Params: raw})
}

func (s *Server) sendResult(id json.RawMessage, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.send(rpcMessage{JSONRPC: "2.0", ID: id, Result: raw})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(rpcMessage{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) send(msg rpcMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	s.logger.Printf(format, args...)
}

func (s *Server) tracef(format string, args ...any) {
	if !s.trace {
		return
	}
	s.logger.Printf(format, args...)
}
