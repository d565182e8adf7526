package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/csams/podcast-player/internal/config"
	"github.com/csams/podcast-player/internal/feed"
	"github.com/csams/podcast-player/internal/kvstore"
	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/player"
	"github.com/csams/podcast-player/internal/progress"
)

type commandContext struct {
	configFlag  *string
	catalogFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, catalogFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		catalogFlag: catalogFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// catalogSource returns the --catalog flag or the configured source.
func (c *commandContext) catalogSource() (string, error) {
	if c.catalogFlag != nil {
		if source := strings.TrimSpace(*c.catalogFlag); source != "" {
			if feed.IsURL(source) {
				return source, nil
			}
			return config.ExpandPath(source)
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Catalog.Source == "" {
		return "", errors.New("no catalog configured: set [catalog] source or pass --catalog")
	}
	return cfg.Catalog.Source, nil
}

func (c *commandContext) loadCatalog(ctx context.Context) (*models.Catalog, error) {
	source, err := c.catalogSource()
	if err != nil {
		return nil, err
	}
	catalog, err := feed.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return catalog, nil
}

func (c *commandContext) findEpisode(ctx context.Context, id string) (*models.Catalog, *models.Episode, error) {
	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	episode, ok := catalog.Find(id)
	if !ok {
		return nil, nil, fmt.Errorf("episode %q not found", id)
	}
	return catalog, episode, nil
}

// newLogger builds the process logger. The TUI passes toFile so log output
// does not draw over the screen.
func (c *commandContext) newLogger(toFile bool) (*slog.Logger, io.Closer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if toFile {
		opts.File = cfg.Paths.LogFile
	}
	return logging.New(opts)
}

// withProgress opens the configured key-value store for the duration of fn.
func (c *commandContext) withProgress(logger *slog.Logger, fn func(*progress.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	kv, err := kvstore.Open(kvstore.Options{Backend: cfg.Storage.Backend, Path: cfg.Storage.Path})
	if err != nil {
		return fmt.Errorf("open progress store: %w", err)
	}
	if closer, ok := kv.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("failed to close progress store", logging.Error(err))
			}
		}()
	}
	return fn(progress.New(kv, logger))
}

// newBackend selects the audio backend. "auto" prefers mpv when it is on
// PATH and falls back to the in-process decoder.
func (c *commandContext) newBackend(logger *slog.Logger) (player.Backend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	mpv := func() player.Backend {
		return player.NewMPV(player.MPVOptions{
			Binary:     cfg.Player.MPVPath,
			SocketPath: cfg.Player.SocketPath,
			Logger:     logger,
		})
	}

	switch cfg.Player.Backend {
	case "mpv":
		return mpv(), nil
	case "beep":
		backend, err := player.NewBeepBackend(logger)
		if err != nil {
			return nil, fmt.Errorf("start beep backend: %w", err)
		}
		return backend, nil
	default:
		if _, err := exec.LookPath(cfg.Player.MPVPath); err == nil {
			return mpv(), nil
		}
		if player.BeepAvailable {
			logger.Info("mpv not found, using in-process decoder", slog.String("mpv_path", cfg.Player.MPVPath))
			return player.NewBeepBackend(logger)
		}
		return nil, fmt.Errorf("no audio backend: install mpv or build with cgo: %w", player.ErrUnavailable)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
