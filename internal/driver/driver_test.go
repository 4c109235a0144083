package driver

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"rescriptls/internal/compilerlog"
	"rescriptls/internal/project"
)

const sampleLog = `#Start(1000)

  We've found a bug for you!
  /src/Demo.res:3:9-14

  Hint: Did you mean useState

  We've found a bug for you!
  /src/Other.res:5:1-6

  This has type: string
  Somewhere wanted: option<string>

#Done(1042)
`

func writeProject(t *testing.T) (string, project.Settings) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "rescript.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	settings := project.DefaultSettings()
	logPath := project.CompilerLogPath(root, settings)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return root, settings
}

func TestAnalyze(t *testing.T) {
	root, settings := writeProject(t)

	result, err := Analyze(context.Background(), root, settings, Options{NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if len(result.Actions) != 2 {
		t.Fatalf("expected actions for 2 files, got %d", len(result.Actions))
	}
	demo := result.Actions["/src/Demo.res"]
	if len(demo) != 1 || demo[0].Action.Title != "Replace with 'useState'" {
		t.Fatalf("unexpected Demo.res actions %+v", demo)
	}
	other := result.Actions["/src/Other.res"]
	if len(other) != 1 || other[0].Action.Title != "Wrap in Some" {
		t.Fatalf("unexpected Other.res actions %+v", other)
	}
}

func TestAnalyzeCapturesGuards(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "rescript.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	srcPath := filepath.Join(root, "App.res")
	if err := os.WriteFile(srcPath, []byte("let x = stateX\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := "  We've found a bug for you!\n" +
		"  " + srcPath + ":1:9-14\n\n" +
		"  Hint: Did you mean useState\n"
	settings := project.DefaultSettings()
	logPath := project.CompilerLogPath(root, settings)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte(log), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Analyze(context.Background(), root, settings, Options{NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	entries := result.Actions[srcPath]
	if len(entries) != 1 {
		t.Fatalf("expected 1 action, got %+v", result.Actions)
	}
	if entries[0].OldText != "stateX" {
		t.Fatalf("OldText = %q, want %q", entries[0].OldText, "stateX")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	root, settings := writeProject(t)

	first, err := Analyze(context.Background(), root, settings, Options{NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Analyze(context.Background(), root, settings, Options{NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Actions, second.Actions) {
		t.Fatalf("analysis is not deterministic:\n%v\n%v", first.Actions, second.Actions)
	}
}

func TestAnalyzeMissingLog(t *testing.T) {
	root := t.TempDir()
	_, err := Analyze(context.Background(), root, project.DefaultSettings(), Options{NoCache: true})
	if err == nil {
		t.Fatalf("expected an error for a missing compiler log")
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cache, err := OpenDiskCache("rescriptls-test")
	if err != nil {
		t.Fatal(err)
	}

	key := cacheKey([]byte(sampleLog), compilerlog.Options{})
	var miss CachePayload
	if ok, err := cache.Get(key, &miss); err != nil || ok {
		t.Fatalf("expected a miss, got ok=%v err=%v", ok, err)
	}

	payload := &CachePayload{Schema: cacheSchemaVersion}
	if err := cache.Put(key, payload); err != nil {
		t.Fatal(err)
	}
	var hit CachePayload
	ok, err := cache.Get(key, &hit)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || hit.Schema != cacheSchemaVersion {
		t.Fatalf("expected a hit, got ok=%v payload=%+v", ok, hit)
	}

	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := cache.Get(key, &hit); ok {
		t.Fatalf("expected a miss after DropAll")
	}
}
