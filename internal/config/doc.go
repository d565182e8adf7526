// Package config loads, normalizes and validates the player's TOML
// configuration.
//
// Configuration lives at ~/.config/podcast-player/config.toml unless a path
// is given. A missing file is not an error: defaults apply. Paths accept a
// leading ~ and are made absolute during normalization.
package config
