package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/store"
)

func newListCmd(g *globals) *cobra.Command {
	var (
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored macros",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cat macro.Category
			if category != "" {
				c, err := macro.ParseCategory(category)
				if err != nil {
					return err
				}
				cat = c
			}

			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			infos, err := repo.List(ctx, cat)
			if err != nil {
				return err
			}
			if asJSON {
				if infos == nil {
					infos = []store.Info{}
				}
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			return writeInfos(cmd.OutOrStdout(), infos)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&category, "category", "", "only list macros in this category")
	flags.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			tl, err := repo.Load(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, macro.Encode(tl))
			}

			meta := tl.Metadata()
			fmt.Fprintf(out, "ID:          %s\n", args[0])
			fmt.Fprintf(out, "Name:        %s\n", meta.Name)
			fmt.Fprintf(out, "Category:    %s\n", meta.Category)
			fmt.Fprintf(out, "Description: %s\n", meta.Description)
			fmt.Fprintf(out, "Hotkey:      %s\n", meta.Hotkey)
			fmt.Fprintf(out, "Created:     %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Window:      %dx%d\n", meta.ReferenceSize.Width, meta.ReferenceSize.Height)
			fmt.Fprintf(out, "Events:      %d over %.2fs\n", tl.Len(), tl.Duration().Seconds())
			if diags := tl.Diagnostics(); len(diags) > 0 {
				fmt.Fprintf(out, "Diagnostics:\n")
				for _, d := range diags {
					fmt.Fprintf(out, "  %s\n", d)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full record as JSON")
	return cmd
}

func newEditCmd(g *globals) *cobra.Command {
	var name, category, description, hotkey string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a stored macro's name, category, description or hotkey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()

			var u store.InfoUpdate
			if flags.Changed("name") {
				if strings.TrimSpace(name) == "" {
					return fmt.Errorf("name must not be empty")
				}
				u.Name = &name
			}
			if flags.Changed("category") {
				cat, err := macro.ParseCategory(category)
				if err != nil {
					return err
				}
				u.Category = &cat
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("hotkey") {
				if hotkey != "" {
					if _, err := key.Parse(hotkey); err != nil {
						return fmt.Errorf("hotkey: %w", err)
					}
				}
				u.Hotkey = &hotkey
			}

			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			info, err := store.UpdateInfo(ctx, repo, args[0], u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s.\n", info.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "new name")
	flags.StringVar(&category, "category", "", "new category")
	flags.StringVar(&description, "description", "", "new description")
	flags.StringVar(&hotkey, "hotkey", "", "new hotkey label; empty clears it")
	return cmd
}

func newDuplicateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "duplicate <id> <new-name>",
		Aliases: []string{"cp"},
		Short:   "Copy a stored macro under a new name",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			info, err := store.Duplicate(ctx, repo, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s.\n", info.ID)
			return nil
		},
	}
}

func newDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete stored macros",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			for _, id := range args {
				if err := repo.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", id)
			}
			return nil
		},
	}
}

func newExportCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <id> <path>",
		Short: "Write a stored macro to a JSON or YAML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := store.ParseFormat(format, args[1])
			if err != nil {
				return err
			}
			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := store.Export(ctx, repo, args[0], args[1], f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s.\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "json or yaml (defaults to the file extension)")
	return cmd
}

func newImportCmd(g *globals) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Add JSON or YAML macro files to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cat macro.Category
			if category != "" {
				c, err := macro.ParseCategory(category)
				if err != nil {
					return err
				}
				cat = c
			}
			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			for _, path := range args {
				info, err := store.Import(ctx, repo, path, cat)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s.\n", path, info.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "store under this category instead of the file's")
	return cmd
}

func newStatsCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the macro library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := g.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			st, err := store.Summarize(ctx, repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, st)
			}
			fmt.Fprintf(out, "Macros:   %d\n", st.Total)
			fmt.Fprintf(out, "Events:   %d\n", st.TotalEvents)
			fmt.Fprintf(out, "Duration: %.1fs\n", st.TotalDuration)
			for _, c := range macro.Categories() {
				fmt.Fprintf(out, "  %-10s %d\n", c, st.Categories[c])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeInfos(w io.Writer, infos []store.Info) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEVENTS\tDURATION\tHOTKEY\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2fs\t%s\t%s\n",
			info.ID, info.Name, info.EventCount, info.Duration,
			orDash(info.Hotkey), info.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
