package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/csams/podcast-player/internal/player"
	"github.com/csams/podcast-player/internal/progress"
)

// fakeBackend records calls; playHook, when set, decides each Play outcome.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	source   string
	volume   float64
	rate     float64
	loadErr  error
	playErr  error
	playHook func(source string) error
	events   chan player.Event
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{volume: 1, rate: 1, events: make(chan player.Event, 8)}
}

func (b *fakeBackend) record(format string, args ...any) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) Load(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("load %s", source)
	if b.loadErr != nil {
		return b.loadErr
	}
	b.source = source
	return nil
}

func (b *fakeBackend) Play(ctx context.Context) error {
	b.mu.Lock()
	b.record("play %s", b.source)
	source, hook, err := b.source, b.playHook, b.playErr
	b.mu.Unlock()
	if hook != nil {
		return hook(source)
	}
	return err
}

func (b *fakeBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("pause")
	return nil
}

func (b *fakeBackend) Seek(seconds float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("seek %g", seconds)
	return nil
}

func (b *fakeBackend) SetVolume(volume float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("volume %g", volume)
	b.volume = volume
	return nil
}

func (b *fakeBackend) SetRate(rate float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("rate %g", rate)
	b.rate = rate
	return nil
}

func (b *fakeBackend) Events() <-chan player.Event {
	return b.events
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("close")
	return nil
}

func (b *fakeBackend) history() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

type savedProgress struct {
	id       string
	position float64
	duration float64
}

// fakeStore is an in-memory ProgressStore that records every save.
type fakeStore struct {
	mu            sync.Mutex
	records       map[string]progress.Record
	saves         []savedProgress
	settings      *progress.Settings
	settingsSaves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]progress.Record)}
}

func (s *fakeStore) SaveProgress(id string, position, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, savedProgress{id, position, duration})
	s.records[id] = progress.Record{Position: position, Duration: duration}
}

func (s *fakeStore) GetProgress(id string) (progress.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	return record, ok
}

func (s *fakeStore) SavePlayerSettings(settings progress.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	s.settingsSaves++
}

func (s *fakeStore) GetPlayerSettings() progress.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return progress.DefaultSettings()
	}
	return *s.settings
}

func (s *fakeStore) savesFor(id string) []savedProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []savedProgress
	for _, save := range s.saves {
		if save.id == id {
			out = append(out, save)
		}
	}
	return out
}
