package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/csams/podcast-player/internal/kvstore"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePlayer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	backends := []string{kvstore.BackendFile, kvstore.BackendSQLite, kvstore.BackendMemory}
	if !lo.Contains(backends, c.Storage.Backend) {
		return fmt.Errorf("storage.backend: unsupported value %q (want file, sqlite or memory)", c.Storage.Backend)
	}
	if c.Storage.Backend != kvstore.BackendMemory && c.Storage.Path == "" {
		return errors.New("storage.path must be set")
	}
	return nil
}

func (c *Config) validatePlayer() error {
	switch c.Player.Backend {
	case "mpv", "beep", "auto":
	default:
		return fmt.Errorf("player.backend: unsupported value %q (want mpv, beep or auto)", c.Player.Backend)
	}
	if c.Player.SkipSeconds < 0 {
		return errors.New("player.skip_seconds must be positive")
	}
	if c.Player.VolumeStep < 0 || c.Player.VolumeStep > 1 {
		return errors.New("player.volume_step must be between 0 and 1")
	}
	for _, preset := range c.Player.SpeedPresets {
		if preset <= 0 || math.IsNaN(preset) || math.IsInf(preset, 0) {
			return fmt.Errorf("player.speed_presets: invalid rate %v", preset)
		}
	}
	if c.Player.ResumeThreshold < 0 {
		return errors.New("player.resume_threshold must not be negative")
	}
	if c.Player.FlushInterval < 0 {
		return errors.New("player.flush_interval must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json", "console":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want text, json or console)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
