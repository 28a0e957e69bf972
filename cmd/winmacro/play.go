package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/engine"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/store"
)

type waited struct {
	out *engine.Outcome
	err error
}

func newPlayCmd(g *globals) *cobra.Command {
	var (
		file  string
		loops int
		speed float64
	)

	cmd := &cobra.Command{
		Use:   "play [id]",
		Short: "Replay a stored macro or a macro file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if (len(args) == 1) == (file != "") {
				return errors.New("give either a macro id or --file")
			}
			if !cmd.Flags().Changed("loops") {
				loops = g.cfg.Playback.Loops
			}
			if !cmd.Flags().Changed("speed") {
				speed = g.cfg.Playback.Speed
			}

			tl, err := g.loadTimeline(ctx, args, file)
			if err != nil {
				return err
			}

			eng, err := g.engine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			id, err := eng.Play(ctx, tl, loops, speed)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Playing %q (%s). Press %s or Ctrl-C to stop.\n",
				tl.Metadata().Name, loopLabel(loops), g.cfg.Safety.StopKey)

			ch := make(chan waited, 1)
			go func() {
				o, err := eng.Wait(context.Background(), id)
				ch <- waited{o, err}
			}()

			var w waited
			select {
			case w = <-ch:
			case <-ctx.Done():
				if err := eng.Stop(id); err != nil && !errors.Is(err, engine.ErrSessionNotFound) {
					return err
				}
				w = <-ch
			}
			if w.err != nil {
				return w.err
			}
			if w.out.Err != nil {
				return w.out.Err
			}

			if r := w.out.Result; r != nil {
				fmt.Fprintf(out, "Dispatched %d events in %d loops over %s.\n",
					r.Dispatched, r.Loops, r.Elapsed.Round(time.Millisecond))
			}
			if w.out.Reason != "" {
				fmt.Fprintf(out, "Stopped: %s.\n", w.out.Reason)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "play a JSON or YAML macro file without importing it")
	flags.IntVarP(&loops, "loops", "l", 1, "number of loops; 0 repeats until stopped (defaults to playback.loops)")
	flags.Float64VarP(&speed, "speed", "s", 1, "speed multiplier (defaults to playback.speed)")
	return cmd
}

func (g *globals) loadTimeline(ctx context.Context, args []string, file string) (*macro.Timeline, error) {
	if file != "" {
		return store.ReadFile(file)
	}
	repo, err := g.repository(ctx)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.Load(ctx, args[0])
}

func loopLabel(loops int) string {
	switch loops {
	case 0:
		return "until stopped"
	case 1:
		return "once"
	}
	return fmt.Sprintf("%d loops", loops)
}
