package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/console"
)

func newConsoleCmd(g *globals) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the interactive control panel",
		Long: `Console shows the engine status and the macro library in the terminal.
Keys: r record/stop, p play selected, s stop, up/down select, l reload,
q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if fd := os.Stdout.Fd(); !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
				return errors.New("console needs a terminal; use serve for headless control")
			}

			// Log lines would tear the screen.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			g.logger.SetOutput(logOut)

			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			eng, err := g.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("open terminal: %w", err)
			}
			panel := console.New(eng, screen, console.Options{
				Repo:   repo,
				Loops:  g.cfg.Playback.Loops,
				Speed:  g.cfg.Playback.Speed,
				Logger: g.logger.WithComponent("console"),
			})
			return panel.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file while the console is open")
	return cmd
}
