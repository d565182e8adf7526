package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/csams/podcast-player/internal/feed"
	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/playback"
	"github.com/csams/podcast-player/internal/progress"
	"github.com/csams/podcast-player/internal/ui"
)

func newTUICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal player (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, ctx)
		},
	}
}

func runTUI(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	catalog, err := ctx.loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	logger, closer, err := ctx.newLogger(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	backend, err := ctx.newBackend(logger)
	if err != nil {
		return err
	}

	return ctx.withProgress(logger, func(store *progress.Store) error {
		engine := playback.New(backend, store, playback.Options{
			ResumeThreshold: cfg.Player.ResumeThreshold,
			FlushInterval:   cfg.Player.FlushInterval,
			Logger:          logger,
		})
		defer func() {
			if err := engine.Close(); err != nil {
				logger.Warn("failed to close engine", logging.Error(err))
			}
		}()

		runCtx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		go func() {
			if err := engine.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("playback event loop stopped", logging.Error(err))
			}
		}()

		app := ui.New(ui.Options{
			Controller:   engine,
			Progress:     store,
			Catalog:      catalog,
			SkipSeconds:  cfg.Player.SkipSeconds,
			VolumeStep:   cfg.Player.VolumeStep,
			SpeedPresets: cfg.Player.SpeedPresets,
			Logger:       logger,
		})

		source, err := ctx.catalogSource()
		if err == nil && cfg.Catalog.Watch && !feed.IsURL(source) {
			go func() {
				err := feed.Watch(runCtx, source, func(updated *models.Catalog, err error) {
					if err != nil {
						logger.Warn("catalog reload failed", logging.Error(err))
						app.ReportError(err)
						return
					}
					app.SetCatalog(updated)
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("catalog watch stopped", logging.Error(err))
				}
			}()
		}

		return app.Run(runCtx)
	})
}
