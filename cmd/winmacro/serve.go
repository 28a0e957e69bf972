package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/winmacro/internal/emitter"
	"github.com/dshills/winmacro/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API",
		Long: `Serve exposes recording, playback and the macro library over HTTP, with a
websocket status stream at /api/ws. When mqtt.enabled is set, status
changes are also published to <mqtt.topic_prefix>/status. The config file
is reloaded when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := g.logger
			if !cmd.Flags().Changed("addr") {
				addr = g.cfg.Server.Addr
			}

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

			if !noWatch {
				if _, err := os.Stat(g.configPath); err == nil {
					stop, err := eng.WatchConfig(g.configPath)
					if err != nil {
						return fmt.Errorf("watch %s: %w", g.configPath, err)
					}
					defer stop()
				}
			}

			if g.cfg.MQTT.Enabled {
				pub, err := emitter.Dial(ctx, g.cfg.MQTT, logger)
				if err != nil {
					return err
				}
				em := emitter.Start(eng, pub, emitter.Options{
					Prefix: g.cfg.MQTT.TopicPrefix,
					QoS:    byte(g.cfg.MQTT.QoS),
					Logger: logger.WithComponent("emitter"),
				})
				defer em.Close()
				logger.Info("publishing status to %s", em.Topic())
			}

			srv := server.New(eng, repo, server.Options{
				Addr:   addr,
				Mode:   g.cfg.Server.Mode,
				Logger: logger.WithComponent("server"),
			})
			return srv.Serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	flags.BoolVar(&noWatch, "no-watch", false, "do not reload the config file when it changes")
	return cmd
}
