// Package project locates ReScript project roots and loads rescriptls
// settings.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Marker files identifying a ReScript project root.
var rootMarkers = []string{"rescript.json", "bsconfig.json"}

// SettingsFile is the optional per-project configuration file.
const SettingsFile = "rescriptls.toml"

// defaultCompilerLog is where the build tool writes diagnostics,
// relative to the project root.
const defaultCompilerLog = "lib/bs/.compiler.log"

// ErrNoProjectRoot indicates no marker file was found walking up.
var ErrNoProjectRoot = errors.New("no rescript.json or bsconfig.json found")

// Settings is the [rescriptls] configuration surface.
type Settings struct {
	// CompilerLog overrides the compiler log path, relative to the root.
	CompilerLog string `toml:"compiler_log"`
	// MaxDiagnostics caps how many diagnostics one pass reports.
	MaxDiagnostics int `toml:"max_diagnostics"`
	// DebounceMs is the LSP re-analysis debounce in milliseconds.
	DebounceMs int `toml:"debounce_ms"`
	// ErrorWarnings lists warning numbers treated as errors.
	ErrorWarnings []int `toml:"error_warnings"`
	// Trace enables server trace logging on stderr.
	Trace bool `toml:"trace"`
}

type settingsFile struct {
	Rescriptls Settings `toml:"rescriptls"`
}

// DefaultSettings returns the configuration used when no settings file
// is present.
func DefaultSettings() Settings {
	return Settings{
		CompilerLog:    defaultCompilerLog,
		MaxDiagnostics: 100,
		DebounceMs:     250,
	}
}

// FindRoot walks up from dir looking for a project marker file.
func FindRoot(dir string) (string, bool, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", false, err
	}
	for {
		for _, marker := range rootMarkers {
			info, err := os.Stat(filepath.Join(current, marker))
			if err == nil && !info.IsDir() {
				return current, true, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false, nil
		}
		current = parent
	}
}

// LoadSettings reads rescriptls.toml from the project root, falling
// back to defaults when the file does not exist. Unset fields take
// their default values.
func LoadSettings(root string) (Settings, error) {
	settings := DefaultSettings()
	path := filepath.Join(root, SettingsFile)
	var cfg settingsFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("rescriptls", "compiler_log") && cfg.Rescriptls.CompilerLog != "" {
		settings.CompilerLog = cfg.Rescriptls.CompilerLog
	}
	if meta.IsDefined("rescriptls", "max_diagnostics") && cfg.Rescriptls.MaxDiagnostics > 0 {
		settings.MaxDiagnostics = cfg.Rescriptls.MaxDiagnostics
	}
	if meta.IsDefined("rescriptls", "debounce_ms") && cfg.Rescriptls.DebounceMs > 0 {
		settings.DebounceMs = cfg.Rescriptls.DebounceMs
	}
	if meta.IsDefined("rescriptls", "error_warnings") {
		settings.ErrorWarnings = cfg.Rescriptls.ErrorWarnings
	}
	if meta.IsDefined("rescriptls", "trace") {
		settings.Trace = cfg.Rescriptls.Trace
	}
	return settings, nil
}

// CompilerLogPath resolves the compiler log location for a root.
func CompilerLogPath(root string, s Settings) string {
	log := s.CompilerLog
	if log == "" {
		log = defaultCompilerLog
	}
	if filepath.IsAbs(log) {
		return log
	}
	return filepath.Join(root, log)
}
