// Package playback owns the single playback session: it drives an audio
// backend, applies the resume protocol and periodically persists progress.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/csams/podcast-player/internal/describe"
	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/player"
	"github.com/csams/podcast-player/internal/progress"
)

const (
	// DefaultResumeThreshold is the saved position a resume must exceed.
	DefaultResumeThreshold = 5.0
	// DefaultFlushInterval is the width of the periodic save buckets.
	DefaultFlushInterval = 10.0
)

// ProgressStore is the persistence the engine needs.
type ProgressStore interface {
	SaveProgress(episodeID string, position, duration float64)
	GetProgress(episodeID string) (progress.Record, bool)
	SavePlayerSettings(settings progress.Settings)
	GetPlayerSettings() progress.Settings
}

// Options tunes the engine.
type Options struct {
	ResumeThreshold float64
	FlushInterval   float64
	Logger          *slog.Logger
}

type session struct {
	id       string
	logger   *slog.Logger
	episode  *models.Episode
	chapters []describe.Chapter
	state    State

	position      float64
	duration      float64
	durationKnown bool
	volume        float64
	rate          float64

	flushBucket int64
}

// Engine serialises all session mutation. Listeners are called outside the
// engine lock, in registration order.
type Engine struct {
	backend player.Backend
	store   ProgressStore
	logger  *slog.Logger

	resumeThreshold float64
	flushInterval   float64

	mu           sync.Mutex
	seq          uint64
	session      *session
	generation   uint64
	listeners    map[int]func(Snapshot)
	listenerSeq  int
	listenerKeys []int
}

// New creates an engine around one backend.
func New(backend player.Backend, store ProgressStore, opts Options) *Engine {
	if opts.ResumeThreshold <= 0 {
		opts.ResumeThreshold = DefaultResumeThreshold
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return &Engine{
		backend:         backend,
		store:           store,
		logger:          logging.NewComponentLogger(opts.Logger, "playback"),
		resumeThreshold: opts.ResumeThreshold,
		flushInterval:   opts.FlushInterval,
		listeners:       make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn for every state change. The returned function
// removes it.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listenerSeq++
	key := e.listenerSeq
	e.listeners[key] = fn
	e.listenerKeys = append(e.listenerKeys, key)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.listeners, key)
			for i, k := range e.listenerKeys {
				if k == key {
					e.listenerKeys = append(e.listenerKeys[:i], e.listenerKeys[i+1:]...)
					break
				}
			}
		})
	}
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Play makes episode the active one and starts it. Playing the active
// episode again toggles it.
func (e *Engine) Play(ctx context.Context, episode *models.Episode) error {
	if episode == nil {
		return ErrMissingSource
	}

	e.mu.Lock()
	if s := e.session; s != nil && s.episode != nil && s.episode.ID == episode.ID {
		e.mu.Unlock()
		return e.TogglePlay(ctx)
	}

	e.flushLocked()

	if !episode.HasSource() {
		e.mu.Unlock()
		e.logger.Warn("episode has no audio source", slog.String(logging.FieldEpisodeID, episode.ID))
		return fmt.Errorf("%w: %s", ErrMissingSource, episode.ID)
	}

	s := e.ensureSessionLocked()
	e.generation++
	if err := e.backend.Load(episode.AudioURL); err != nil {
		e.resetLocked()
		snap, listeners := e.publishLocked()
		e.mu.Unlock()
		e.notify(snap, listeners)
		s.logger.Warn("failed to load episode", slog.String(logging.FieldEpisodeID, episode.ID), logging.Error(err))
		return fmt.Errorf("%w %s: %w", ErrLoad, episode.ID, err)
	}

	s.episode = episode
	s.chapters = describe.Chapters(episode.Description)
	s.state = StateLoading
	s.position = 0
	s.duration = 0
	s.durationKnown = false

	if record, ok := e.store.GetProgress(episode.ID); ok && record.Position > e.resumeThreshold {
		if err := e.backend.Seek(record.Position); err != nil {
			s.logger.Warn("failed to apply resume position", logging.Error(err))
		} else {
			s.position = record.Position
			s.logger.Debug("resuming episode", slog.String(logging.FieldEpisodeID, episode.ID), slog.Float64("position", record.Position))
		}
	}
	s.flushBucket = e.bucket(s.position)

	gen := e.generation
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)

	e.start(ctx, gen)
	return nil
}

// TogglePlay pauses a playing session and starts or resumes any other one.
// It is a no-op without an active episode.
func (e *Engine) TogglePlay(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	if s == nil || s.episode == nil {
		e.mu.Unlock()
		return nil
	}

	switch s.state {
	case StatePlaying:
		if err := e.backend.Pause(); err != nil {
			s.logger.Warn("failed to pause", logging.Error(err))
			e.mu.Unlock()
			return nil
		}
		s.state = StatePaused
		e.flushLocked()
		snap, listeners := e.publishLocked()
		e.mu.Unlock()
		e.notify(snap, listeners)
		return nil

	case StateLoading:
		e.mu.Unlock()
		s.logger.Debug("toggle ignored while loading")
		return nil

	case StateEnded:
		if err := e.backend.Load(s.episode.AudioURL); err != nil {
			id := s.episode.ID
			e.generation++
			e.resetLocked()
			snap, listeners := e.publishLocked()
			e.mu.Unlock()
			e.notify(snap, listeners)
			s.logger.Warn("failed to reload episode", slog.String(logging.FieldEpisodeID, id), logging.Error(err))
			return fmt.Errorf("%w %s: %w", ErrLoad, id, err)
		}
		// A seek made after the end becomes the start position of the replay.
		if s.position > 0 {
			if err := e.backend.Seek(s.position); err != nil {
				s.logger.Warn("failed to apply start position", logging.Error(err))
				s.position = 0
			}
		}
		s.flushBucket = e.bucket(s.position)
	}

	e.generation++
	gen := e.generation
	s.state = StateLoading
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)

	e.start(ctx, gen)
	return nil
}

// start asks the backend to play outside the lock. A resolution for a
// superseded generation is dropped.
func (e *Engine) start(ctx context.Context, gen uint64) {
	err := e.backend.Play(ctx)

	e.mu.Lock()
	s := e.session
	if gen != e.generation || s == nil || s.episode == nil {
		e.mu.Unlock()
		e.logger.Debug("ignoring stale playback resolution", logging.Error(err))
		return
	}
	if err != nil {
		s.state = StatePaused
		s.logger.Warn("playback rejected", slog.String(logging.FieldEpisodeID, s.episode.ID), logging.Error(err))
	} else {
		s.state = StatePlaying
	}
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)
}

// Seek moves to an absolute position clamped to the episode bounds.
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	if !e.seekLocked(seconds) {
		e.mu.Unlock()
		return
	}
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)
}

// Skip seeks relative to the current position.
func (e *Engine) Skip(delta float64) {
	e.mu.Lock()
	s := e.session
	if s == nil || s.episode == nil || !e.seekLocked(s.position+delta) {
		e.mu.Unlock()
		return
	}
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)
}

func (e *Engine) seekLocked(seconds float64) bool {
	s := e.session
	if s == nil || s.episode == nil || math.IsNaN(seconds) {
		return false
	}
	target := s.clamp(seconds)
	if err := e.backend.Seek(target); err != nil {
		s.logger.Warn("failed to seek", slog.Float64("position", target), logging.Error(err))
	}
	s.position = target
	return true
}

// SetVolume clamps v into [0, 1] and persists it.
func (e *Engine) SetVolume(v float64) error {
	if math.IsNaN(v) {
		return ErrInvalidVolume
	}
	v = min(max(v, 0), 1)

	e.mu.Lock()
	s := e.ensureSessionLocked()
	if err := e.backend.SetVolume(v); err != nil {
		s.logger.Warn("failed to set volume", logging.Error(err))
	}
	s.volume = v
	e.store.SavePlayerSettings(progress.Settings{Volume: s.volume, Rate: s.rate})
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)
	return nil
}

// SetRate changes the playback rate and persists it.
func (e *Engine) SetRate(r float64) error {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, r)
	}

	e.mu.Lock()
	s := e.ensureSessionLocked()
	if err := e.backend.SetRate(r); err != nil {
		s.logger.Warn("failed to set rate", logging.Error(err))
	}
	s.rate = r
	e.store.SavePlayerSettings(progress.Settings{Volume: s.volume, Rate: s.rate})
	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)
	return nil
}

// JumpToChapter plays episode if needed and seeks to the chapter start.
func (e *Engine) JumpToChapter(ctx context.Context, episode *models.Episode, index int) error {
	if episode == nil {
		return ErrMissingSource
	}
	chapters := describe.Chapters(episode.Description)
	if index < 0 || index >= len(chapters) {
		return fmt.Errorf("%w: %d", ErrNoChapter, index)
	}

	snap := e.Snapshot()
	switch {
	case !snap.Active() || snap.Episode.ID != episode.ID:
		if err := e.Play(ctx, episode); err != nil {
			return err
		}
	case snap.State == StatePaused || snap.State == StateEnded:
		if err := e.TogglePlay(ctx); err != nil {
			return err
		}
	}

	e.Seek(float64(chapters[index].Offset))
	return nil
}

// HandleEvent applies a backend event to the session.
func (e *Engine) HandleEvent(event player.Event) {
	e.mu.Lock()
	s := e.session
	if s == nil || s.episode == nil || event.Source != s.episode.AudioURL {
		e.mu.Unlock()
		return
	}

	switch event.Kind {
	case player.EventTick:
		if s.state == StateEnded || math.IsNaN(event.Position) {
			e.mu.Unlock()
			return
		}
		s.position = s.clamp(event.Position)
		if bucket := e.bucket(s.position); bucket != s.flushBucket {
			s.flushBucket = bucket
			e.flushLocked()
		}

	case player.EventMetadata:
		if event.Duration <= 0 || math.IsNaN(event.Duration) || math.IsInf(event.Duration, 0) {
			e.mu.Unlock()
			return
		}
		s.duration = event.Duration
		s.durationKnown = true
		s.position = s.clamp(s.position)

	case player.EventEnded:
		s.state = StateEnded
		s.position = 0
		s.flushBucket = 0
		e.flushLocked()
		s.logger.Info("episode ended", slog.String(logging.FieldEpisodeID, s.episode.ID))

	default:
		e.mu.Unlock()
		return
	}

	snap, listeners := e.publishLocked()
	e.mu.Unlock()
	e.notify(snap, listeners)
}

// Run consumes backend events until ctx is done or the stream closes.
func (e *Engine) Run(ctx context.Context) error {
	events := e.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleEvent(event)
		}
	}
}

// Close saves the active position and releases the backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.flushLocked()
	e.mu.Unlock()

	if err := e.backend.Close(); err != nil {
		return fmt.Errorf("failed to close audio backend: %w", err)
	}
	return nil
}

func (e *Engine) ensureSessionLocked() *session {
	if e.session != nil {
		return e.session
	}

	settings := e.store.GetPlayerSettings()
	id := uuid.NewString()
	s := &session{
		id:     id,
		logger: e.logger.With(slog.String(logging.FieldSession, id)),
		state:  StateIdle,
		volume: settings.Volume,
		rate:   settings.Rate,
	}
	if err := e.backend.SetVolume(s.volume); err != nil {
		s.logger.Warn("failed to apply saved volume", logging.Error(err))
	}
	if err := e.backend.SetRate(s.rate); err != nil {
		s.logger.Warn("failed to apply saved rate", logging.Error(err))
	}
	s.logger.Debug("session created", slog.Float64("volume", s.volume), slog.Float64("rate", s.rate))
	e.session = s
	return s
}

// resetLocked drops the active episode; volume and rate survive.
func (e *Engine) resetLocked() {
	s := e.session
	if s == nil {
		return
	}
	s.episode = nil
	s.chapters = nil
	s.state = StateIdle
	s.position = 0
	s.duration = 0
	s.durationKnown = false
	s.flushBucket = 0
}

// flushLocked saves the active position. Until the backend reports a
// duration the declared one is stored.
func (e *Engine) flushLocked() {
	s := e.session
	if s == nil || s.episode == nil {
		return
	}
	duration := s.duration
	if !s.durationKnown {
		duration = s.episode.DeclaredDuration
	}
	e.store.SaveProgress(s.episode.ID, s.position, duration)
}

func (e *Engine) bucket(position float64) int64 {
	return int64(math.Floor(position / e.flushInterval))
}

func (s *session) clamp(position float64) float64 {
	position = max(position, 0)
	if s.durationKnown {
		position = min(position, s.duration)
	}
	return position
}

func (e *Engine) snapshotLocked() Snapshot {
	s := e.session
	if s == nil {
		settings := progress.DefaultSettings()
		return Snapshot{Seq: e.seq, State: StateIdle, Volume: settings.Volume, Rate: settings.Rate, ChapterIndex: -1}
	}
	return Snapshot{
		Seq:           e.seq,
		Episode:       s.episode,
		State:         s.state,
		IsPlaying:     s.state == StatePlaying,
		Position:      s.position,
		Duration:      s.duration,
		DurationKnown: s.durationKnown,
		Volume:        s.volume,
		Rate:          s.rate,
		Chapters:      s.chapters,
		ChapterIndex:  describe.ActiveChapter(s.chapters, s.position),
	}
}

// publishLocked numbers a new snapshot. Delivery happens after the lock is
// released, so listeners on different goroutines can see them out of order
// and should drop any Seq lower than one already seen.
func (e *Engine) publishLocked() (Snapshot, []func(Snapshot)) {
	e.seq++
	listeners := make([]func(Snapshot), 0, len(e.listenerKeys))
	for _, key := range e.listenerKeys {
		listeners = append(listeners, e.listeners[key])
	}
	return e.snapshotLocked(), listeners
}

func (e *Engine) notify(snap Snapshot, listeners []func(Snapshot)) {
	for _, fn := range listeners {
		fn(snap)
	}
}
