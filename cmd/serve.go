package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"album-scanner/config"
	"album-scanner/logging"
	"album-scanner/messaging"
	"album-scanner/server"
	"album-scanner/settings"
)

func newServeCmd(version string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the album message service",
		Long: `Start the HTTP service that hosts one discovery engine per tab.

Clients drive engines through POST /api/message, follow new images on
/api/tabs/:id/stream and render exports through POST /api/export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg, version)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Settings, version string) error {
	logger := newLogger(cfg, os.Stdout)
	opts := scanOptions(cfg)

	hub := messaging.NewHub(logger)
	coord := messaging.NewCoordinator(ctx, hub, newFetcher(cfg, logger), opts, logger)
	store := settings.NewStore(cfg.Export.SettingsPath)
	if _, err := store.Load(); err != nil {
		logger.WithError(err).Warn("Settings file unreadable, serving defaults")
	}

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		KeepAlive:       cfg.Server.KeepAlive,
	}, coord, store, logger)

	logging.LogStartup(logger, version, cfg.Server.Port, string(opts.Mode))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		start := time.Now()
		coord.Close()
		logging.LogShutdown(logger, elapsed(start))
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
