// Package progress persists per-episode playback positions and the global
// player settings on top of a kvstore.Store. Storage failures are logged and
// absorbed: callers always get a usable answer.
package progress

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/csams/podcast-player/internal/kvstore"
	"github.com/csams/podcast-player/internal/logging"
)

const (
	progressKeyPrefix = "podcast-progress-"
	settingsKey       = "podcast-player-settings"
)

// Record is the saved position of one episode.
type Record struct {
	Position float64
	Duration float64
	SavedAt  time.Time
}

// Entry pairs a record with its episode id.
type Entry struct {
	EpisodeID string
	Record
}

// Settings are the player-wide volume and playback rate.
type Settings struct {
	Volume float64
	Rate   float64
}

// DefaultSettings returns full volume at normal speed.
func DefaultSettings() Settings {
	return Settings{Volume: 1, Rate: 1}
}

type recordDoc struct {
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	SavedAt  int64   `json:"savedAt"`
}

// legacyRecordDoc is the shape written by earlier versions.
type legacyRecordDoc struct {
	Position  *float64 `json:"position"`
	Current   *float64 `json:"currentTime"`
	Duration  float64  `json:"duration"`
	SavedAt   *int64   `json:"savedAt"`
	Timestamp *int64   `json:"timestamp"`
}

type settingsDoc struct {
	Volume       *float64 `json:"volume,omitempty"`
	Rate         *float64 `json:"rate,omitempty"`
	PlaybackRate *float64 `json:"playbackRate,omitempty"`
}

// Store reads and writes progress records and settings.
type Store struct {
	kv     kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a progress store over kv.
func New(kv kvstore.Store, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logging.NewComponentLogger(logger, "progress"),
		now:    time.Now,
	}
}

// ProgressKey returns the storage key for an episode.
func ProgressKey(episodeID string) string {
	return progressKeyPrefix + episodeID
}

// SaveProgress upserts the position of an episode. Empty ids are ignored.
func (s *Store) SaveProgress(episodeID string, position, duration float64) {
	if episodeID == "" {
		return
	}
	doc := recordDoc{
		Position: finite(position),
		Duration: finite(duration),
		SavedAt:  s.now().UnixMilli(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		s.logger.Warn("failed to encode progress", slog.String(logging.FieldEpisodeID, episodeID), logging.Error(err))
		return
	}
	if err := s.kv.Set(ProgressKey(episodeID), data); err != nil {
		s.logger.Warn("failed to save progress", slog.String(logging.FieldEpisodeID, episodeID), logging.Error(err))
	}
}

// GetProgress returns the saved record, or false when none is available.
func (s *Store) GetProgress(episodeID string) (Record, bool) {
	if episodeID == "" {
		return Record{}, false
	}
	data, err := s.kv.Get(ProgressKey(episodeID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return Record{}, false
	}
	if err != nil {
		s.logger.Warn("failed to read progress", slog.String(logging.FieldEpisodeID, episodeID), logging.Error(err))
		return Record{}, false
	}
	record, err := decodeRecord(data)
	if err != nil {
		s.logger.Warn("failed to decode progress", slog.String(logging.FieldEpisodeID, episodeID), logging.Error(err))
		return Record{}, false
	}
	return record, true
}

// ClearProgress removes the saved record for an episode.
func (s *Store) ClearProgress(episodeID string) {
	if episodeID == "" {
		return
	}
	if err := s.kv.Delete(ProgressKey(episodeID)); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Warn("failed to clear progress", slog.String(logging.FieldEpisodeID, episodeID), logging.Error(err))
	}
}

// ListProgress returns every saved record, most recent first. It returns
// nil when the backend cannot enumerate keys.
func (s *Store) ListProgress() []Entry {
	lister, ok := s.kv.(kvstore.Lister)
	if !ok {
		return nil
	}
	keys, err := lister.Keys(progressKeyPrefix)
	if err != nil {
		s.logger.Warn("failed to list progress", logging.Error(err))
		return nil
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, progressKeyPrefix)
		if record, ok := s.GetProgress(id); ok {
			entries = append(entries, Entry{EpisodeID: id, Record: record})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SavedAt.After(entries[j].SavedAt)
	})
	return entries
}

// SavePlayerSettings persists volume and rate.
func (s *Store) SavePlayerSettings(settings Settings) {
	settings = normalizeSettings(settings)
	data, err := json.Marshal(settingsDoc{Volume: &settings.Volume, Rate: &settings.Rate})
	if err != nil {
		s.logger.Warn("failed to encode player settings", logging.Error(err))
		return
	}
	if err := s.kv.Set(settingsKey, data); err != nil {
		s.logger.Warn("failed to save player settings", logging.Error(err))
	}
}

// GetPlayerSettings returns the saved settings, falling back to defaults.
func (s *Store) GetPlayerSettings() Settings {
	data, err := s.kv.Get(settingsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return DefaultSettings()
	}
	if err != nil {
		s.logger.Warn("failed to read player settings", logging.Error(err))
		return DefaultSettings()
	}

	var doc settingsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("failed to decode player settings", logging.Error(err))
		return DefaultSettings()
	}

	settings := DefaultSettings()
	if doc.Volume != nil {
		settings.Volume = *doc.Volume
	}
	switch {
	case doc.Rate != nil:
		settings.Rate = *doc.Rate
	case doc.PlaybackRate != nil:
		settings.Rate = *doc.PlaybackRate
	}
	return normalizeSettings(settings)
}

func decodeRecord(data []byte) (Record, error) {
	var doc legacyRecordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Record{}, err
	}

	var record Record
	switch {
	case doc.Position != nil:
		record.Position = *doc.Position
	case doc.Current != nil:
		record.Position = *doc.Current
	}
	record.Duration = doc.Duration

	switch {
	case doc.SavedAt != nil:
		record.SavedAt = time.UnixMilli(*doc.SavedAt)
	case doc.Timestamp != nil:
		record.SavedAt = time.UnixMilli(*doc.Timestamp)
	}
	record.Position = math.Max(0, finite(record.Position))
	record.Duration = math.Max(0, finite(record.Duration))
	return record, nil
}

func normalizeSettings(settings Settings) Settings {
	switch {
	case math.IsNaN(settings.Volume):
		settings.Volume = 1
	case settings.Volume < 0:
		settings.Volume = 0
	case settings.Volume > 1:
		settings.Volume = 1
	}
	if settings.Rate <= 0 || math.IsNaN(settings.Rate) || math.IsInf(settings.Rate, 0) {
		settings.Rate = 1
	}
	return settings
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
