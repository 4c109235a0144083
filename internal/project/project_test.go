package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "src", "components")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rescript.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	root, ok, err := FindRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected to find a root above %s", nested)
	}
	if root != dir {
		t.Fatalf("root %q, want %q", root, dir)
	}
}

func TestFindRootMissing(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := FindRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected no root in empty temp dir")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	dir := t.TempDir()
	settings, err := LoadSettings(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultSettings()
	if settings.CompilerLog != want.CompilerLog || settings.MaxDiagnostics != want.MaxDiagnostics {
		t.Fatalf("expected defaults, got %+v", settings)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `[rescriptls]
compiler_log = "out/.compiler.log"
max_diagnostics = 25
error_warnings = [8, 27]
trace = true
`
	if err := os.WriteFile(filepath.Join(dir, SettingsFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	settings, err := LoadSettings(dir)
	if err != nil {
		t.Fatal(err)
	}
	if settings.CompilerLog != "out/.compiler.log" {
		t.Fatalf("compiler_log not applied: %+v", settings)
	}
	if settings.MaxDiagnostics != 25 {
		t.Fatalf("max_diagnostics not applied: %+v", settings)
	}
	if len(settings.ErrorWarnings) != 2 || settings.ErrorWarnings[0] != 8 {
		t.Fatalf("error_warnings not applied: %+v", settings)
	}
	if !settings.Trace {
		t.Fatalf("trace not applied: %+v", settings)
	}
	// Unset fields keep defaults.
	if settings.DebounceMs != DefaultSettings().DebounceMs {
		t.Fatalf("debounce default lost: %+v", settings)
	}
}

func TestCompilerLogPath(t *testing.T) {
	s := DefaultSettings()
	got := CompilerLogPath("/proj", s)
	want := filepath.Join("/proj", "lib", "bs", ".compiler.log")
	if got != want {
		t.Fatalf("path %q, want %q", got, want)
	}
	s.CompilerLog = "/abs/.compiler.log"
	if CompilerLogPath("/proj", s) != "/abs/.compiler.log" {
		t.Fatalf("absolute override not honored")
	}
}
