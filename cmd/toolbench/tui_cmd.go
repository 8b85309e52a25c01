package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The UI owns the terminal, so logs go to a file.
	logPath := filepath.Join(catalog.DefaultDir(), "toolbench.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger.SetOutput(logFile)
	defer logger.SetOutput(os.Stderr)

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	title := "toolbench"
	if apiAddr != "" {
		title += " @ " + apiAddr
	}

	app := tui.New(e.registry, e.executor, e.selection,
		tui.WithLogger(e.log),
		tui.WithRefreshInterval(e.cfg.RefreshInterval),
		tui.WithTitle(title),
	)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
