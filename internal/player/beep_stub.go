//go:build !((linux && cgo) || windows || darwin)

package player

import (
	"log/slog"
	"time"
)

// BeepAvailable reports whether the in-process decoder is compiled in.
// Audio output needs cgo on linux.
const BeepAvailable = false

// Beep is not available in this build.
type Beep struct{}

// NewBeep always fails without cgo.
func NewBeep(*slog.Logger, time.Duration) (*Beep, error) {
	return nil, ErrUnavailable
}

// NewBeepBackend always fails without cgo.
func NewBeepBackend(*slog.Logger) (Backend, error) {
	return nil, ErrUnavailable
}
