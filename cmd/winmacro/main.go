// Package main is the winmacro command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/config"
	"github.com/dshills/winmacro/internal/engine"
	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/platform/sim"
	"github.com/dshills/winmacro/internal/platform/win32"
	"github.com/dshills/winmacro/internal/store"
	"github.com/dshills/winmacro/internal/store/sqlite"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globals holds the persistent flags and what they resolve to.
type globals struct {
	configPath string
	logLevel   string
	simulate   bool

	cfg    *config.Config
	logger *logging.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "winmacro: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "winmacro",
		Short:         "Record and replay input macros against a game window",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", config.DefaultPath, "path to configuration file")
	flags.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	flags.BoolVar(&g.simulate, "simulate", false, "drive a simulated desktop instead of the real one")

	root.AddCommand(
		newRecordCmd(g),
		newPlayCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newEditCmd(g),
		newDuplicateCmd(g),
		newDeleteCmd(g),
		newExportCmd(g),
		newImportCmd(g),
		newStatsCmd(g),
		newWindowsCmd(g),
		newServeCmd(g),
		newConsoleCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globals) load(cmd *cobra.Command) error {
	required := cmd.Flags().Changed("config")
	cfg, err := config.LoadWith(g.configPath, config.LoadOptions{Required: required})
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		if _, err := logging.ParseLevel(g.logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = g.logLevel
	}
	g.cfg = cfg

	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel()
	g.logger = logging.New(lc)
	logging.SetDefault(g.logger)
	return nil
}

// platform returns the desktop binding selected by --simulate.
func (g *globals) platform() (platform.Platform, error) {
	if !g.simulate {
		p, err := win32.New()
		if err != nil {
			return platform.Platform{}, fmt.Errorf("%w (use --simulate to try winmacro without a desktop)", err)
		}
		return p, nil
	}
	desk := sim.New()
	desk.AddWindow(g.cfg.Window.Title, geometry.RectFromOriginSize(geometry.Point{X: 100, Y: 100}, geometry.Size{Width: 800, Height: 600}))
	return desk.Platform(), nil
}

// engine creates and starts an engine. The engine outlives cancellation
// of ctx; the caller stops sessions and closes it.
func (g *globals) engine(ctx context.Context) (*engine.Engine, error) {
	plat, err := g.platform()
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Options{Platform: plat, Config: g.cfg, Logger: g.logger})
	if err != nil {
		return nil, err
	}
	if err := eng.Start(context.WithoutCancel(ctx)); err != nil {
		_ = eng.Close()
		return nil, err
	}
	return eng, nil
}

// repository opens the configured macro store. The caller closes it.
func (g *globals) repository(ctx context.Context) (store.Repository, error) {
	switch g.cfg.Storage.Backend {
	case "sqlite":
		db, err := sqlite.Open(ctx, g.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		fs, err := store.NewFileStore(g.cfg.Storage.Dir, store.WithLogger(g.logger.WithComponent("store")))
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "winmacro %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
