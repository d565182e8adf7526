package playback

import (
	"errors"
	"fmt"

	"github.com/csams/podcast-player/internal/describe"
	"github.com/csams/podcast-player/internal/models"
)

var (
	// ErrMissingSource is returned when an episode has no audio reference.
	ErrMissingSource = errors.New("episode has no audio source")
	// ErrLoad wraps backend failures while assigning a source.
	ErrLoad = errors.New("failed to load episode")
	// ErrInvalidRate is returned for non-positive or non-finite rates.
	ErrInvalidRate = errors.New("playback rate must be positive")
	// ErrInvalidVolume is returned for NaN volumes.
	ErrInvalidVolume = errors.New("volume must be a number")
	// ErrNoChapter is returned when a chapter index is out of range.
	ErrNoChapter = errors.New("no such chapter")
)

// State is the session transport state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	// Seq increases with every published change.
	Seq           uint64
	Episode       *models.Episode
	State         State
	IsPlaying     bool
	Position      float64
	Duration      float64
	DurationKnown bool
	Volume        float64
	Rate          float64
	Chapters      []describe.Chapter
	// ChapterIndex is the chapter containing Position, or -1.
	ChapterIndex int
}

// Active reports whether an episode is selected.
func (s Snapshot) Active() bool {
	return s.Episode != nil
}
