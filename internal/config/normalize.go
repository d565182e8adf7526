package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/csams/podcast-player/internal/feed"
	"github.com/csams/podcast-player/internal/kvstore"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizePlayer(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDirFromEnv()
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogFile) == "" {
		c.Paths.LogFile = filepath.Join(c.Paths.DataDir, defaultLogFileName)
	}
	if c.Paths.LogFile, err = expandPath(c.Paths.LogFile); err != nil {
		return fmt.Errorf("paths.log_file: %w", err)
	}
	return nil
}

func defaultDataDirFromEnv() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "podcast-player")
	}
	return defaultDataDir
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if c.Storage.Backend == kvstore.BackendMemory {
		c.Storage.Path = ""
		return nil
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = kvstore.DefaultPath(c.Storage.Backend, c.Paths.DataDir)
	}
	var err error
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	return nil
}

func (c *Config) normalizePlayer() error {
	c.Player.Backend = strings.ToLower(strings.TrimSpace(c.Player.Backend))
	if c.Player.Backend == "" {
		c.Player.Backend = defaultPlayerBackend
	}
	c.Player.MPVPath = strings.TrimSpace(c.Player.MPVPath)
	if c.Player.MPVPath == "" {
		c.Player.MPVPath = defaultMPVPath
	}
	if strings.ContainsRune(c.Player.MPVPath, os.PathSeparator) {
		var err error
		if c.Player.MPVPath, err = expandPath(c.Player.MPVPath); err != nil {
			return fmt.Errorf("player.mpv_path: %w", err)
		}
	}
	if c.Player.SocketPath != "" {
		var err error
		if c.Player.SocketPath, err = expandPath(c.Player.SocketPath); err != nil {
			return fmt.Errorf("player.socket_path: %w", err)
		}
	}
	if c.Player.SkipSeconds == 0 {
		c.Player.SkipSeconds = defaultSkipSeconds
	}
	if c.Player.VolumeStep == 0 {
		c.Player.VolumeStep = defaultVolumeStep
	}
	if len(c.Player.SpeedPresets) == 0 {
		c.Player.SpeedPresets = append([]float64(nil), DefaultSpeedPresets...)
	}
	c.Player.SpeedPresets = lo.Uniq(c.Player.SpeedPresets)
	sort.Float64s(c.Player.SpeedPresets)
	if c.Player.ResumeThreshold == 0 {
		c.Player.ResumeThreshold = defaultResumeThreshold
	}
	if c.Player.FlushInterval == 0 {
		c.Player.FlushInterval = defaultFlushInterval
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Source = strings.TrimSpace(c.Catalog.Source)
	if c.Catalog.Source == "" || feed.IsURL(c.Catalog.Source) {
		return nil
	}
	var err error
	if c.Catalog.Source, err = expandPath(c.Catalog.Source); err != nil {
		return fmt.Errorf("catalog.source: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
