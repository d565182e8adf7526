package player

import (
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strings"
)

// LocalPath resolves a plain path or file:// URL to a filesystem path.
// Remote URLs are rejected with ErrUnavailable.
func LocalPath(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("empty source")
	}
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		if u.Scheme != "file" {
			return "", fmt.Errorf("%w: %s is not a local file", ErrUnavailable, source)
		}
		return filepath.FromSlash(u.Path), nil
	}
	return source, nil
}

// IsRemote reports whether source must be streamed over the network.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// volumeLevel converts a linear [0, 1] level into the base-2 exponent used
// by beep's volume effect.
func volumeLevel(volume float64) (level float64, silent bool) {
	if volume <= 0 || math.IsNaN(volume) {
		return 0, true
	}
	return math.Log2(min(volume, 1)), false
}
