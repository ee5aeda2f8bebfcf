package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/arrange"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/board"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/config"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/server"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the roadmap HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	s, err := store.Open(ctx, cfg.Store, store.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []board.Option{board.WithLogger(logger)}
	if cfg.Arrange.URL != "" {
		client := arrange.NewClient(cfg.Arrange, logger)
		opts = append(opts, board.WithArranger(client), board.WithInsighter(client))
	} else {
		logger.Info("arrangement service not configured; arrange and insights are disabled")
	}

	b := board.New(s, cfg.Settings(), opts...)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("closing board", slog.String("error", err.Error()))
		}
	}()
	if err := b.Load(ctx); err != nil {
		return err
	}

	return server.New(b, cfg.SVG, logger).ListenAndServe(ctx, cfg.Server.Addr)
}
