package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rescriptls/internal/codeaction"
	"rescriptls/internal/driver"
	"rescriptls/internal/fix"
	"rescriptls/internal/ui"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] [directory]",
	Short: "Apply available quick fixes to project sources",
	Long:  "Parse the project's compiler log, derive quick fixes from its diagnostics, and apply them according to the chosen strategy.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().Bool("all", false, "apply all non-conflicting fixes")
	fixCmd.Flags().Bool("once", false, "apply the first available fix (default)")
	fixCmd.Flags().String("id", "", "apply fix with a specific identifier")
	fixCmd.Flags().Bool("list", false, "list available fixes without applying them")
	fixCmd.Flags().Bool("ui", false, "show interactive progress while applying")
}

func runFix(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	applyAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	applyOnceFlag, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}
	targetID, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	listOnly, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	withUI, err := cmd.Flags().GetBool("ui")
	if err != nil {
		return err
	}
	noCache, err := cmd.Root().PersistentFlags().GetBool("no-cache")
	if err != nil {
		return err
	}
	if _, err := useColor(cmd); err != nil {
		return err
	}

	if targetID != "" && (applyAll || applyOnceFlag) {
		return fmt.Errorf("--id cannot be combined with --all or --once")
	}
	if applyAll && applyOnceFlag {
		return fmt.Errorf("--all and --once are mutually exclusive")
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

	fixes := fix.List(result.Actions)
	if listOnly {
		if len(fixes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No applicable fixes found.")
			return nil
		}
		for _, f := range fixes {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s [%s] — %s:%d:%d\n",
				f.Title, f.ID, f.Path, f.Range.Start.Line+1, f.Range.Start.Character+1)
		}
		return nil
	}

	mode := fix.ApplyModeOnce
	if targetID != "" {
		mode = fix.ApplyModeID
	} else if applyAll {
		mode = fix.ApplyModeAll
	}
	opts := fix.ApplyOptions{
		Mode:     mode,
		TargetID: targetID,
	}

	if withUI && isTerminal(os.Stdout) {
		return runFixWithUI(fixes, result, opts)
	}
	res, applyErr := fix.Apply(result.Actions, opts)
	return handleApplyResult(res, applyErr)
}

// runFixWithUI applies fixes on a goroutine while a Bubble Tea model
// renders per-file progress from the engine's event stream.
func runFixWithUI(fixes []fix.Fix, result *driver.Result, opts fix.ApplyOptions) error {
	seen := make(map[string]struct{}, len(fixes))
	files := make([]string, 0, len(fixes))
	for _, f := range fixes {
		if _, ok := seen[f.Path]; ok {
			continue
		}
		seen[f.Path] = struct{}{}
		files = append(files, f.Path)
	}

	res, applyErr, uiErr := applyWithProgress(result.Actions, opts, files, func(m tea.Model) error {
		_, err := tea.NewProgram(m).Run()
		return err
	})
	if uiErr != nil {
		return uiErr
	}
	return handleApplyResult(res, applyErr)
}

// applyWithProgress runs the engine on a goroutine while runUI consumes
// its event stream, and joins the goroutine before returning. The UI
// may quit early (ctrl+c) while the engine is mid-write; the events
// channel is buffered for one event per file so the engine never blocks
// on an absent consumer, and the join keeps the results from being read
// before they are complete.
func applyWithProgress(store codeaction.Store, opts fix.ApplyOptions, files []string, runUI func(tea.Model) error) (res *fix.ApplyResult, applyErr, uiErr error) {
	events := make(chan fix.Event, len(files))
	opts.Events = events

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, applyErr = fix.Apply(store, opts)
		close(events)
	}()

	uiErr = runUI(ui.NewProgressModel("Applying fixes", files, events))
	<-done
	return res, applyErr, uiErr
}

func handleApplyResult(res *fix.ApplyResult, applyErr error) error {
	if res == nil {
		return applyErr
	}

	if len(res.Applied) > 0 {
		fmt.Fprintf(os.Stdout, "Applied %d fix(es):\n", len(res.Applied))
		for _, item := range res.Applied {
			fmt.Fprintf(os.Stdout, "  %s [%s] %s (%d edits)\n",
				item.Title, item.ID, item.Path, item.EditCount)
		}
	}

	if len(res.FileChanges) > 0 {
		fmt.Fprintln(os.Stdout, "Updated files:")
		for _, change := range res.FileChanges {
			fmt.Fprintf(os.Stdout, "  %s (%d edits)\n", change.Path, change.EditCount)
		}
	}

	if len(res.Skipped) > 0 {
		fmt.Fprintln(os.Stdout, "Skipped fixes:")
		for _, skip := range res.Skipped {
			id := skip.ID
			if id == "" {
				id = "(unnamed)"
			}
			if skip.Title != "" {
				fmt.Fprintf(os.Stdout, "  %s [%s]: %s\n", skip.Title, id, skip.Reason)
			} else {
				fmt.Fprintf(os.Stdout, "  [%s]: %s\n", id, skip.Reason)
			}
		}
	}

	if applyErr != nil {
		if errors.Is(applyErr, fix.ErrNoFixes) && len(res.Applied) == 0 {
			fmt.Fprintln(os.Stdout, "No applicable fixes found.")
			return nil
		}
		return applyErr
	}
	return nil
}
