package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/window"
)

func newWindowsCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "windows",
		Short: "List the windows a session could target",
		Long: `Windows lists visible top-level windows, largest first, after applying
window.exclude_titles. The window marked with * is the one sessions will
target for the configured window.title.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plat, err := g.platform()
			if err != nil {
				return err
			}
			tracker := window.New(plat.Windows,
				window.WithExcludeTitles(g.cfg.Window.ExcludeTitles...),
				window.WithLogger(g.logger.WithComponent("window")),
			)
			wins, err := tracker.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), wins)
			}

			needle := strings.ToLower(strings.TrimSpace(g.cfg.Window.Title))
			marked := false
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tHANDLE\tTITLE\tPOSITION\tSIZE")
			for _, w := range wins {
				mark := ""
				if !marked && needle != "" && strings.Contains(strings.ToLower(w.Title), needle) {
					mark, marked = "*", true
				}
				size := w.Bounds.Size()
				fmt.Fprintf(tw, "%s\t0x%x\t%s\t%d,%d\t%dx%d\n",
					mark, uintptr(w.Handle), w.Title, w.Bounds.Min.X, w.Bounds.Min.Y, size.Width, size.Height)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
