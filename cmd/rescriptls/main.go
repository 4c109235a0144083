package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rescriptls/internal/project"
	"rescriptls/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "rescriptls",
	Short:        "ReScript diagnostics companion",
	Long:         `rescriptls scrapes the ReScript compiler log for diagnostics, derives quick fixes from them, and serves both to editors or the terminal`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics to process (0=project setting)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the parsed-log disk cache")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag against the output terminal and
// configures the global color state to match.
func useColor(cmd *cobra.Command) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	var enabled bool
	switch mode {
	case "on":
		enabled = true
	case "off":
		enabled = false
	case "auto":
		enabled = isTerminal(os.Stdout)
	default:
		return false, fmt.Errorf("unsupported color mode %q (must be auto, on, or off)", mode)
	}
	color.NoColor = !enabled
	return enabled, nil
}

// resolveProject locates the project root for dir and loads its
// settings, applying the --max-diagnostics override when set.
func resolveProject(cmd *cobra.Command, dir string) (string, project.Settings, error) {
	root, ok, err := project.FindRoot(dir)
	if err != nil {
		return "", project.Settings{}, err
	}
	if !ok {
		return "", project.Settings{}, fmt.Errorf("%s: %w", dir, project.ErrNoProjectRoot)
	}
	settings, err := project.LoadSettings(root)
	if err != nil {
		return "", project.Settings{}, err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return "", project.Settings{}, err
	}
	if maxDiagnostics > 0 {
		settings.MaxDiagnostics = maxDiagnostics
	}
	return root, settings, nil
}
