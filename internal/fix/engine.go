// Package fix applies quick-fix code actions to files on disk.
//
// All edit positions refer to the original document, so the engine
// collects every selected edit per file first, rejects conflicting
// candidates, and applies a file's edits in a single bottom-up pass
// before writing the result back atomically.
package fix

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/protocol"
)

// ErrNoFixes is returned when no fixes were applied.
var ErrNoFixes = errors.New("no applicable fixes found")

// ApplyMode determines selection strategy for fixes.
type ApplyMode uint8

const (
	ApplyModeOnce ApplyMode = iota
	ApplyModeAll
	ApplyModeID
)

// ApplyOptions configures how fixes are selected and applied.
type ApplyOptions struct {
	Mode     ApplyMode
	TargetID string
	// Events receives per-file progress notifications when non-nil.
	Events chan<- Event
}

// Event reports progress on one file during application.
type Event struct {
	Path    string
	Applied int
}

// AppliedFix records a successfully applied fix.
type AppliedFix struct {
	ID        string
	Title     string
	Path      string
	EditCount int
}

// SkippedFix captures a skipped or failed fix with a reason.
type SkippedFix struct {
	ID     string
	Title  string
	Reason string
}

// FileChange summarises modifications performed on a file.
type FileChange struct {
	Path      string
	EditCount int
}

// ApplyResult aggregates applied fixes, skipped ones, and file changes.
type ApplyResult struct {
	Applied     []AppliedFix
	Skipped     []SkippedFix
	FileChanges []FileChange
}

// Fix describes one applicable fix in the store.
type Fix struct {
	ID        string
	Title     string
	Path      string
	Range     protocol.Range
	Preferred bool
}

// List enumerates applicable fixes in the order Apply would consider
// them. The IDs are stable for an unchanged store and feed --id.
func List(store codeaction.Store) []Fix {
	cands := gatherCandidates(store)
	sortCandidates(cands)
	fixes := make([]Fix, 0, len(cands))
	for _, cand := range cands {
		fixes = append(fixes, Fix{
			ID:        cand.id,
			Title:     cand.action.Title,
			Path:      cand.path,
			Range:     cand.rng,
			Preferred: cand.preferred,
		})
	}
	return fixes
}

type candidate struct {
	id        string
	path      string
	rng       protocol.Range
	action    protocol.CodeAction
	oldText   string
	order     int
	preferred bool
}

// Apply selects actions from the store according to opts and applies
// their edits to the files they name.
func Apply(store codeaction.Store, opts ApplyOptions) (*ApplyResult, error) {
	result := &ApplyResult{
		Applied:     make([]AppliedFix, 0),
		Skipped:     make([]SkippedFix, 0),
		FileChanges: make([]FileChange, 0),
	}

	candidates := gatherCandidates(store)
	if len(candidates) == 0 {
		return result, ErrNoFixes
	}
	sortCandidates(candidates)

	selected, selectionSkips := selectCandidates(candidates, opts)
	result.Skipped = append(result.Skipped, selectionSkips...)
	if len(selected) == 0 {
		return result, ErrNoFixes
	}

	applied, applySkips, changes, err := applyCandidates(selected, opts.Events)
	result.Applied = append(result.Applied, applied...)
	result.Skipped = append(result.Skipped, applySkips...)
	result.FileChanges = append(result.FileChanges, changes...)
	if err != nil {
		return result, err
	}
	if len(result.Applied) == 0 {
		return result, ErrNoFixes
	}
	return result, nil
}

// gatherCandidates flattens the store into candidates with stable
// synthesized IDs (path, 1-based start position, per-file index).
func gatherCandidates(store codeaction.Store) []candidate {
	paths := make([]string, 0, len(store))
	for path := range store {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	cands := make([]candidate, 0)
	order := 0
	for _, path := range paths {
		for idx, entry := range store[path] {
			if entry.Action.Edit == nil || len(entry.Action.Edit.Changes) == 0 {
				continue
			}
			cands = append(cands, candidate{
				id: fmt.Sprintf("%s:%d:%d:%d",
					filepath.Base(path),
					entry.Range.Start.Line+1,
					entry.Range.Start.Character+1,
					idx,
				),
				path:      path,
				rng:       entry.Range,
				action:    entry.Action,
				oldText:   entry.OldText,
				order:     order,
				preferred: entry.Action.IsPreferred,
			})
			order++
		}
	}
	return cands
}

// sortCandidates orders candidates deterministically: path, start, end,
// insertion order, preference, title.
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := cands[i], cands[j]
		if ci.path != cj.path {
			return ci.path < cj.path
		}
		if ci.rng.Start != cj.rng.Start {
			return ci.rng.Start.Before(cj.rng.Start)
		}
		if ci.rng.End != cj.rng.End {
			return ci.rng.End.Before(cj.rng.End)
		}
		if ci.order != cj.order {
			return ci.order < cj.order
		}
		if ci.preferred != cj.preferred {
			return ci.preferred
		}
		return ci.action.Title < cj.action.Title
	})
}

func selectCandidates(cands []candidate, opts ApplyOptions) ([]candidate, []SkippedFix) {
	switch opts.Mode {
	case ApplyModeID:
		for _, cand := range cands {
			if cand.id == opts.TargetID {
				return []candidate{cand}, nil
			}
		}
		return nil, []SkippedFix{{
			ID:     opts.TargetID,
			Reason: "fix id not found",
		}}
	case ApplyModeAll:
		return cands, nil
	case ApplyModeOnce:
		return cands[:1], nil
	default:
		return nil, nil
	}
}

func applyCandidates(selected []candidate, events chan<- Event) ([]AppliedFix, []SkippedFix, []FileChange, error) {
	pendingEdits := make(map[string][]protocol.TextEdit)
	fileEditCount := make(map[string]int)

	applied := make([]AppliedFix, 0, len(selected))
	skipped := make([]SkippedFix, 0)

	// All guard checks read against pre-application content; the write
	// pass below only starts once selection is final.
	fileContent := make(map[string][]byte)
	readContent := func(path string) ([]byte, bool) {
		if content, ok := fileContent[path]; ok {
			return content, content != nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			fileContent[path] = nil
			return nil, false
		}
		fileContent[path] = content
		return content, true
	}

	for _, cand := range selected {
		if cand.oldText != "" {
			content, ok := readContent(cand.path)
			if !ok || staleAt(content, cand.rng, cand.oldText) {
				skipped = append(skipped, SkippedFix{
					ID:     cand.id,
					Title:  cand.action.Title,
					Reason: fmt.Sprintf("%s changed since diagnosis", cand.path),
				})
				continue
			}
		}
		var skipReason string
		total := 0
		for path, edits := range cand.action.Edit.Changes {
			if conflictsWithExisting(pendingEdits[path], edits) {
				skipReason = fmt.Sprintf("conflicts with previously selected edits in %s", path)
				break
			}
			total += len(edits)
		}
		if skipReason != "" {
			skipped = append(skipped, SkippedFix{
				ID:     cand.id,
				Title:  cand.action.Title,
				Reason: skipReason,
			})
			continue
		}
		for path, edits := range cand.action.Edit.Changes {
			pendingEdits[path] = append(pendingEdits[path], edits...)
			fileEditCount[path] += len(edits)
		}
		applied = append(applied, AppliedFix{
			ID:        cand.id,
			Title:     cand.action.Title,
			Path:      cand.path,
			EditCount: total,
		})
	}

	if len(applied) == 0 {
		return applied, skipped, nil, nil
	}

	paths := make([]string, 0, len(pendingEdits))
	for path := range pendingEdits {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	fileChanges := make([]FileChange, 0, len(paths))
	for _, path := range paths {
		count, err := applyFileEdits(path, pendingEdits[path])
		if err != nil {
			return applied, skipped, fileChanges, err
		}
		fileChanges = append(fileChanges, FileChange{Path: path, EditCount: count})
		if events != nil {
			events <- Event{Path: path, Applied: count}
		}
	}
	return applied, skipped, fileChanges, nil
}

// applyFileEdits rewrites one file with all its edits in a single pass,
// highest offset first so earlier offsets stay valid.
func applyFileEdits(path string, edits []protocol.TextEdit) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	type resolved struct {
		start, end int
		newText    string
	}
	resolvedEdits := make([]resolved, 0, len(edits))
	for _, edit := range edits {
		start := protocol.OffsetForPosition(content, edit.Range.Start)
		end := protocol.OffsetForPosition(content, edit.Range.End)
		if end < start {
			return 0, fmt.Errorf("%s: edit range inverted", path)
		}
		resolvedEdits = append(resolvedEdits, resolved{start: start, end: end, newText: edit.NewText})
	}
	sort.SliceStable(resolvedEdits, func(i, j int) bool {
		if resolvedEdits[i].start == resolvedEdits[j].start {
			return resolvedEdits[i].end > resolvedEdits[j].end
		}
		return resolvedEdits[i].start > resolvedEdits[j].start
	})

	working := append([]byte(nil), content...)
	for _, e := range resolvedEdits {
		suffix := append([]byte(nil), working[e.end:]...)
		working = append(append(working[:e.start], []byte(e.newText)...), suffix...)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := writeFileAtomic(path, working, mode); err != nil {
		return 0, err
	}
	return len(edits), nil
}

func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rescriptls-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// staleAt reports whether the file content at the diagnosed range no
// longer matches the text the diagnostic was captured against.
func staleAt(content []byte, rng protocol.Range, oldText string) bool {
	start := protocol.OffsetForPosition(content, rng.Start)
	end := protocol.OffsetForPosition(content, rng.End)
	if end < start {
		return true
	}
	return string(content[start:end]) != oldText
}

func conflictsWithExisting(existing []protocol.TextEdit, edits []protocol.TextEdit) bool {
	for _, prev := range existing {
		for _, cand := range edits {
			if prev.Range.Overlaps(cand.Range) {
				return true
			}
		}
	}
	return false
}
