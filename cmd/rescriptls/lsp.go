package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"rescriptls/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the language server over stdio",
	Long:  "Serve diagnostics and quick fixes to an editor over stdin/stdout using the language server protocol.",
	Args:  cobra.NoArgs,
	RunE:  runLSP,
}

func init() {
	lspCmd.Flags().Bool("trace", false, "log server activity to stderr")
}

func runLSP(cmd *cobra.Command, args []string) error {
	trace, err := cmd.Flags().GetBool("trace")
	if err != nil {
		return err
	}

	srv := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{Trace: trace})
	err = srv.Run(cmd.Context())
	switch {
	case err == nil, errors.Is(err, lsp.ErrExit):
		return nil
	case errors.Is(err, lsp.ErrExitWithoutShutdown):
		os.Exit(1)
		return nil
	default:
		return err
	}
}
