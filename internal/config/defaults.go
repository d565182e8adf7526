package config

const (
	defaultConfigPath      = "~/.config/podcast-player/config.toml"
	defaultDataDir         = "~/.local/share/podcast-player"
	defaultLogFileName     = "podcast-player.log"
	defaultStorageBackend  = "file"
	defaultPlayerBackend   = "auto"
	defaultMPVPath         = "mpv"
	defaultSkipSeconds     = 15
	defaultVolumeStep      = 0.1
	defaultResumeThreshold = 5
	defaultFlushInterval   = 10
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
)

// DefaultSpeedPresets are the playback rates cycled by the speed keys.
var DefaultSpeedPresets = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}

// Default returns a Config populated with built-in defaults. Empty paths are
// resolved during normalization.
func Default() Config {
	return Config{
		Storage: Storage{
			Backend: defaultStorageBackend,
		},
		Player: Player{
			Backend:         defaultPlayerBackend,
			MPVPath:         defaultMPVPath,
			SkipSeconds:     defaultSkipSeconds,
			VolumeStep:      defaultVolumeStep,
			SpeedPresets:    append([]float64(nil), DefaultSpeedPresets...),
			ResumeThreshold: defaultResumeThreshold,
			FlushInterval:   defaultFlushInterval,
		},
		Catalog: Catalog{
			Watch: true,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
