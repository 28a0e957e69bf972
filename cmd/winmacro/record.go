package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/engine"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/store"
)

type recorded struct {
	tl  *macro.Timeline
	err error
}

func newRecordCmd(g *globals) *cobra.Command {
	var (
		meta     macro.Metadata
		category string
		noSave   bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record input against the target window",
		Long: `Record captures pointer and keyboard input inside the target window until
the toggle key is pressed, the maximum duration elapses, or the command is
interrupted. The result is saved to the macro library.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if category != "" {
				cat, err := macro.ParseCategory(category)
				if err != nil {
					return err
				}
				meta.Category = cat
			}

			var repo store.Repository
			if !noSave {
				r, err := g.repository(ctx)
				if err != nil {
					return err
				}
				defer r.Close()
				repo = r
			}

			eng, err := g.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			done := make(chan recorded, 1)
			eng.OnRecorded(func(tl *macro.Timeline, err error) {
				select {
				case done <- recorded{tl, err}:
				default:
				}
			})

			if err := eng.StartRecording(ctx, meta); err != nil {
				return err
			}
			stopHint := g.cfg.Safety.StopKey
			if g.cfg.Safety.ToggleRecordingKey != "" {
				stopHint = g.cfg.Safety.ToggleRecordingKey
			}
			fmt.Fprintf(out, "Recording in %q. Press %s or Ctrl-C to stop.\n", g.cfg.Window.Title, stopHint)

			var res recorded
			select {
			case res = <-done:
			case <-ctx.Done():
				tl, err := eng.StopRecording()
				res = recorded{tl, err}
				if errors.Is(err, engine.ErrNotRecording) {
					res = <-done
				}
			}

			if res.err != nil {
				if res.tl == nil || res.tl.Len() == 0 {
					return res.err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: recording ended early: %v\n", res.err)
			}
			tl := res.tl
			if tl == nil || tl.Len() == 0 {
				fmt.Fprintln(out, "Nothing recorded.")
				return nil
			}
			if n := len(tl.Diagnostics()); n > 0 {
				fmt.Fprintf(out, "%d recording diagnostics (see `winmacro show`).\n", n)
			}
			if repo == nil {
				fmt.Fprintf(out, "Recorded %d events over %s (not saved).\n", tl.Len(), tl.Duration())
				return nil
			}

			info, err := repo.Save(ctx, tl)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s: %d events over %.2fs.\n", info.ID, info.EventCount, info.Duration)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&meta.Name, "name", "n", "", "macro name (defaults to a timestamp)")
	flags.StringVar(&category, "category", "", "macro category (defaults to recording.default_category)")
	flags.StringVar(&meta.Description, "description", "", "macro description")
	flags.StringVar(&meta.Hotkey, "hotkey", "", "hotkey label stored with the macro")
	flags.BoolVar(&noSave, "no-save", false, "discard the recording instead of saving it")
	return cmd
}
