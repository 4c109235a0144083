package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rescriptls/internal/diagfmt"
	"rescriptls/internal/driver"
	"rescriptls/internal/fix"
	"rescriptls/internal/protocol"
)

var checkCmd = &cobra.Command{
	Use:   "check [directory]",
	Short: "Report compiler diagnostics and the quick fixes derived from them",
	Long:  "Parse the project's compiler log, print its diagnostics, and list the quick fix available for each one.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().Bool("no-fixes", false, "omit quick fixes from the output")
}

type checkDiagnostic struct {
	Path     string     `json:"path"`
	Line     int        `json:"line"`
	Column   int        `json:"column"`
	Severity string     `json:"severity"`
	Message  string     `json:"message"`
	Fixes    []checkFix `json:"fixes,omitempty"`
}

type checkFix struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	noFixes, err := cmd.Flags().GetBool("no-fixes")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	noCache, err := cmd.Root().PersistentFlags().GetBool("no-cache")
	if err != nil {
		return err
	}
	colorOn, err := useColor(cmd)
	if err != nil {
		return err
	}

	root, settings, err := resolveProject(cmd, dir)
	if err != nil {
		return err
	}

	result, err := driver.Analyze(cmd.Context(), root, settings, driver.Options{
		MaxDiagnostics: settings.MaxDiagnostics,
		ErrorWarnings:  settings.ErrorWarnings,
		NoCache:        noCache,
	})
	if err != nil {
		return err
	}

	switch format {
	case "pretty":
		diagfmt.Pretty(cmd.OutOrStdout(), result.Entries, result.Actions, diagfmt.PrettyOpts{
			Color:     colorOn,
			ShowFixes: !noFixes,
		})
	case "json":
		if err := renderCheckJSON(cmd, result, !noFixes); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	errorCount := 0
	for _, entry := range result.Entries {
		if entry.Diagnostic.Severity == protocol.SeverityError {
			errorCount++
		}
	}
	if errorCount > 0 {
		if !quiet && format == "pretty" {
			fmt.Fprintf(cmd.OutOrStdout(), "%d error(s) found\n", errorCount)
		}
		os.Exit(1)
	}
	return nil
}

func renderCheckJSON(cmd *cobra.Command, result *driver.Result, showFixes bool) error {
	fixesByPath := make(map[string][]fix.Fix)
	if showFixes {
		for _, f := range fix.List(result.Actions) {
			fixesByPath[f.Path] = append(fixesByPath[f.Path], f)
		}
	}

	payload := make([]checkDiagnostic, 0, len(result.Entries))
	for _, entry := range result.Entries {
		d := entry.Diagnostic
		severity := "error"
		if d.Severity == protocol.SeverityWarning {
			severity = "warning"
		}
		item := checkDiagnostic{
			Path:     entry.Path,
			Line:     d.Range.Start.Line + 1,
			Column:   d.Range.Start.Character + 1,
			Severity: severity,
			Message:  d.Message,
		}
		for _, f := range fixesByPath[entry.Path] {
			if f.Range != d.Range {
				continue
			}
			item.Fixes = append(item.Fixes, checkFix{ID: f.ID, Title: f.Title})
		}
		payload = append(payload, item)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
