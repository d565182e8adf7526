// Package player contains the audio backends driven by the playback engine.
package player

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when a backend cannot run in this build or
// environment.
var ErrUnavailable = errors.New("audio backend unavailable")

// EventKind identifies what a backend reported.
type EventKind int

const (
	// EventTick carries the current playback position.
	EventTick EventKind = iota
	// EventMetadata carries the authoritative media duration.
	EventMetadata
	// EventEnded reports natural end of media.
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventMetadata:
		return "metadata"
	case EventEnded:
		return "ended"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by a backend on its Events channel. Source is the media
// the event belongs to so stale events can be told apart.
type Event struct {
	Kind     EventKind
	Source   string
	Position float64
	Duration float64
}

// Backend is a single-stream audio output.
type Backend interface {
	// Load selects the media for the next Play. It does not start audio.
	Load(source string) error
	// Play starts or resumes the loaded media. It may block until the
	// backend is ready; an error means playback was rejected.
	Play(ctx context.Context) error
	Pause() error
	// Seek moves to an absolute position in seconds. Before the first Play
	// of a source it sets the start position.
	Seek(seconds float64) error
	// SetVolume takes a linear level in [0, 1].
	SetVolume(volume float64) error
	SetRate(rate float64) error
	// Events is closed by Close.
	Events() <-chan Event
	Close() error
}
