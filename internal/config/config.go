package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and log locations.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogFile string `toml:"log_file"`
}

// Storage selects the key-value backend used for progress and settings.
type Storage struct {
	Backend string `toml:"backend"` // file, sqlite or memory
	Path    string `toml:"path"`    // Default: <data_dir>/player-state.json or player.db
}

// Player contains audio backend and control settings.
type Player struct {
	Backend         string    `toml:"backend"` // mpv, beep or auto
	MPVPath         string    `toml:"mpv_path"`
	SocketPath      string    `toml:"socket_path"`
	SkipSeconds     float64   `toml:"skip_seconds"`
	VolumeStep      float64   `toml:"volume_step"`
	SpeedPresets    []float64 `toml:"speed_presets"`
	ResumeThreshold float64   `toml:"resume_threshold"`
	FlushInterval   float64   `toml:"flush_interval"`
}

// Catalog locates the episode collection.
type Catalog struct {
	Source string `toml:"source"` // path or http(s) URL
	Watch  bool   `toml:"watch"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Storage Storage `toml:"storage"`
	Player  Player  `toml:"player"`
	Catalog Catalog `toml:"catalog"`
	Logging Logging `toml:"logging"`
}

// Load locates, parses, normalizes and validates a configuration file. It
// returns the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("failed to stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// Save writes the configuration as TOML, creating the directory if needed.
func (c *Config) Save(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ErrSampleExists is returned by CreateSample when path is taken and
// overwrite is false.
var ErrSampleExists = errors.New("config file already exists")

// CreateSample writes the commented sample configuration to path. An empty
// path means the default location. It returns the path written.
func CreateSample(path string, overwrite bool) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	target, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(target, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w at %s (use --overwrite to replace it)", ErrSampleExists, target)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open config file: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write sample config: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write sample config: %w", err)
	}
	return target, nil
}

// EnsureDirectories creates the data directory and the log file's directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir}
	if c.Paths.LogFile != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.LogFile))
	}
	if c.Storage.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
