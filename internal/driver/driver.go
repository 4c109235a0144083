// Package driver coordinates one analysis pass: read the compiler log,
// parse its diagnostics, and derive quick-fix actions per file.
package driver

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/compilerlog"
	"rescriptls/internal/project"
)

// Options configures an analysis pass.
type Options struct {
	// MaxDiagnostics caps the number of diagnostics taken from the log.
	MaxDiagnostics int
	// ErrorWarnings lists warning numbers promoted to errors.
	ErrorWarnings []int
	// NoCache bypasses the parsed-log disk cache.
	NoCache bool
	// Logf receives trace output; nil discards.
	Logf codeaction.Logf
}

// Result is the outcome of one pass: the scraped diagnostics and the
// actions derived from them, keyed by document path.
type Result struct {
	Entries []compilerlog.Entry
	Actions codeaction.Store
}

// Analyze runs a full pass against the project rooted at root.
func Analyze(ctx context.Context, root string, settings project.Settings, opts Options) (*Result, error) {
	logPath := project.CompilerLogPath(root, settings)
	content, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("driver: read compiler log: %w", err)
	}

	parseOpts := compilerlog.Options{
		MaxEntries:    opts.MaxDiagnostics,
		ErrorWarnings: opts.ErrorWarnings,
	}
	entries := parseWithCache(content, parseOpts, opts)

	actions, err := extractActions(ctx, entries, opts.Logf)
	if err != nil {
		return nil, err
	}
	// Snapshot the diagnosed text now so applying later can detect
	// files edited after this log was written.
	actions.CaptureGuards(nil)
	return &Result{Entries: entries, Actions: actions}, nil
}

// parseWithCache consults the disk cache before parsing. Cache failures
// only cost the cached parse, never the pass.
func parseWithCache(content []byte, parseOpts compilerlog.Options, opts Options) []compilerlog.Entry {
	if opts.NoCache {
		return compilerlog.Parse(content, parseOpts)
	}
	cache, err := OpenDiskCache("rescriptls")
	if err != nil {
		if opts.Logf != nil {
			opts.Logf("driver: disk cache unavailable: %v", err)
		}
		return compilerlog.Parse(content, parseOpts)
	}
	key := cacheKey(content, parseOpts)
	var payload CachePayload
	if ok, err := cache.Get(key, &payload); err == nil && ok {
		return payload.Entries
	}
	entries := compilerlog.Parse(content, parseOpts)
	if err := cache.Put(key, &CachePayload{Schema: cacheSchemaVersion, Entries: entries}); err != nil {
		if opts.Logf != nil {
			opts.Logf("driver: cache write failed: %v", err)
		}
	}
	return entries
}

// extractActions derives actions for every file's diagnostics. Files
// are independent, so extraction fans out over a bounded errgroup with
// one private accumulator per file; results merge in path order so the
// pass stays deterministic.
func extractActions(ctx context.Context, entries []compilerlog.Entry, logf codeaction.Logf) (codeaction.Store, error) {
	byFile := make(map[string][]compilerlog.Entry)
	for _, e := range entries {
		byFile[e.Path] = append(byFile[e.Path], e)
	}
	paths := make([]string, 0, len(byFile))
	for path := range byFile {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	stores := make([]codeaction.Store, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			store := codeaction.NewStore()
			for _, e := range byFile[path] {
				codeaction.Extract(store, path, e.Diagnostic, logf)
			}
			stores[i] = store
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := codeaction.NewStore()
	for _, store := range stores {
		for path, entries := range store {
			merged[path] = append(merged[path], entries...)
		}
	}
	return merged, nil
}
