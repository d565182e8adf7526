//go:build (linux && cgo) || windows || darwin

package player

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/timecode"
)

// BeepAvailable reports whether the in-process decoder is compiled in.
const BeepAvailable = true

const beepSampleRate = beep.SampleRate(44100)

var speakerInit struct {
	once sync.Once
	err  error
}

// Beep decodes local mp3 and wav files in process.
type Beep struct {
	logger       *slog.Logger
	pollInterval time.Duration

	mu        sync.Mutex
	source    string
	startAt   float64
	volume    float64
	rate      float64
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	gain      *effects.Volume
	ctrl      *beep.Ctrl
	pollStop  chan struct{}
	closed    bool

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBeep creates the in-process backend.
func NewBeep(logger *slog.Logger, pollInterval time.Duration) (*Beep, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Beep{
		logger:       logging.NewComponentLogger(logger, "beep"),
		pollInterval: pollInterval,
		volume:       1,
		rate:         1,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}, nil
}

// NewBeepBackend returns the in-process decoder as a Backend.
func NewBeepBackend(logger *slog.Logger) (Backend, error) {
	b, err := NewBeep(logger, 0)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Events returns the event stream.
func (b *Beep) Events() <-chan Event {
	return b.events
}

// Load selects a local file for the next Play.
func (b *Beep) Load(source string) error {
	if _, err := LocalPath(source); err != nil {
		return fmt.Errorf("failed to load: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrUnavailable
	}
	b.stopLocked()
	b.source = source
	b.startAt = 0
	return nil
}

// Play decodes the loaded file on first call, otherwise resumes.
func (b *Beep) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrUnavailable
	}
	if b.source == "" {
		return fmt.Errorf("failed to play: nothing loaded")
	}
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}

	path, err := LocalPath(b.source)
	if err != nil {
		return err
	}
	streamer, format, err := decodeFile(path)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	speakerInit.once.Do(func() {
		speakerInit.err = speaker.Init(beepSampleRate, beepSampleRate.N(time.Second/10))
	})
	if speakerInit.err != nil {
		_ = streamer.Close()
		return fmt.Errorf("%w: %v", ErrUnavailable, speakerInit.err)
	}

	if b.startAt > 0 {
		target := min(format.SampleRate.N(timecode.Duration(b.startAt)), streamer.Len()-1)
		if err := streamer.Seek(max(target, 0)); err != nil {
			b.logger.Warn("failed to apply start position", logging.Error(err))
		}
	}

	b.streamer = streamer
	b.format = format
	b.resampler = beep.Resample(4, format.SampleRate, beepSampleRate, streamer)
	b.resampler.SetRatio(b.resampler.Ratio() * b.rate)
	level, silent := volumeLevel(b.volume)
	b.gain = &effects.Volume{Streamer: b.resampler, Base: 2, Volume: level, Silent: silent}
	b.ctrl = &beep.Ctrl{Streamer: b.gain}

	source := b.source
	ctrl := b.ctrl
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine; hand off before touching b.mu.
		go b.finished(source, ctrl)
	})))

	stop := make(chan struct{})
	b.pollStop = stop
	b.wg.Add(1)
	go b.poll(source, stop)

	b.emitAsyncLocked(Event{Kind: EventMetadata, Source: source, Duration: format.SampleRate.D(streamer.Len()).Seconds()})
	return nil
}

// Pause pauses output.
func (b *Beep) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Paused = true
		speaker.Unlock()
	}
	return nil
}

// Seek moves to an absolute position, or records the start position.
func (b *Beep) Seek(seconds float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seconds = max(seconds, 0)
	if b.streamer == nil {
		b.startAt = seconds
		return nil
	}

	speaker.Lock()
	defer speaker.Unlock()
	target := min(b.format.SampleRate.N(timecode.Duration(seconds)), b.streamer.Len()-1)
	if err := b.streamer.Seek(max(target, 0)); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// SetVolume adjusts the gain.
func (b *Beep) SetVolume(volume float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.volume = min(max(volume, 0), 1)
	if b.gain != nil {
		level, silent := volumeLevel(b.volume)
		speaker.Lock()
		b.gain.Volume = level
		b.gain.Silent = silent
		speaker.Unlock()
	}
	return nil
}

// SetRate changes speed by resampling; pitch follows speed.
func (b *Beep) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid rate %v", rate)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.resampler != nil {
		speaker.Lock()
		base := b.resampler.Ratio() / b.rate
		b.resampler.SetRatio(base * rate)
		speaker.Unlock()
	}
	b.rate = rate
	return nil
}

// Close stops output and closes the event stream.
func (b *Beep) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.stopLocked()
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	close(b.events)
	return nil
}

func (b *Beep) stopLocked() {
	if b.pollStop != nil {
		close(b.pollStop)
		b.pollStop = nil
	}
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Paused = true
		b.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if b.streamer != nil {
		_ = b.streamer.Close()
	}
	b.streamer = nil
	b.resampler = nil
	b.gain = nil
	b.ctrl = nil
}

func (b *Beep) finished(source string, ctrl *beep.Ctrl) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.ctrl != ctrl {
		return
	}
	b.stopLocked()
	b.emitAsyncLocked(Event{Kind: EventEnded, Source: source})
}

func (b *Beep) poll(source string, stop <-chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-b.done:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if b.streamer == nil {
			b.mu.Unlock()
			continue
		}
		speaker.Lock()
		position := b.format.SampleRate.D(b.streamer.Position()).Seconds()
		speaker.Unlock()
		b.mu.Unlock()

		select {
		case b.events <- Event{Kind: EventTick, Source: source, Position: position}:
		case <-stop:
			return
		case <-b.done:
			return
		}
	}
}

// emitAsyncLocked delivers event from its own goroutine so b.mu is not held
// while the consumer is behind. Close unblocks pending deliveries. Callers
// must have checked that the backend is not closed.
func (b *Beep) emitAsyncLocked(event Event) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case b.events <- event:
		case <-b.done:
			b.logger.Debug("dropped event on close", slog.String(logging.FieldEventType, event.Kind.String()))
		}
	}()
}

func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		streamer, format, err := wav.Decode(f)
		if err != nil {
			_ = f.Close()
		}
		return streamer, format, err
	default:
		streamer, format, err := mp3.Decode(f)
		if err != nil {
			_ = f.Close()
		}
		return streamer, format, err
	}
}

var _ Backend = (*Beep)(nil)
