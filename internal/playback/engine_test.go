package playback

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/player"
	"github.com/csams/podcast-player/internal/progress"
)

func newTestEngine(t *testing.T) (*Engine, *fakeBackend, *fakeStore) {
	t.Helper()
	backend := newFakeBackend()
	store := newFakeStore()
	return New(backend, store, Options{Logger: logging.NewNop()}), backend, store
}

func episode(id string) *models.Episode {
	return &models.Episode{ID: id, Title: "Episode " + id, AudioURL: "https://cdn.example.com/" + id + ".mp3"}
}

func indexOfCall(calls []string, want string) int {
	for i, call := range calls {
		if call == want {
			return i
		}
	}
	return -1
}

func TestPlayStartsEpisode(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	ep := episode("a")

	if err := engine.Play(context.Background(), ep); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	snap := engine.Snapshot()
	if snap.Episode != ep || snap.State != StatePlaying || !snap.IsPlaying {
		t.Errorf("Expected playing episode a, got %+v", snap)
	}
	if snap.DurationKnown || snap.Position != 0 {
		t.Errorf("Expected fresh session, got %+v", snap)
	}
	calls := backend.history()
	if indexOfCall(calls, "load "+ep.AudioURL) < 0 || indexOfCall(calls, "play "+ep.AudioURL) < 0 {
		t.Errorf("Expected load and play, got %v", calls)
	}
}

func TestPlayResumeThreshold(t *testing.T) {
	tests := []struct {
		name     string
		saved    float64
		wantSeek bool
	}{
		{"below threshold", 3, false},
		{"at threshold", 5, false},
		{"above threshold", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, backend, store := newTestEngine(t)
			store.records["a"] = progress.Record{Position: tt.saved, Duration: 100}

			if err := engine.Play(context.Background(), episode("a")); err != nil {
				t.Fatalf("Play failed: %v", err)
			}

			calls := backend.history()
			seek := indexOfCall(calls, "seek 10")
			play := indexOfCall(calls, "play https://cdn.example.com/a.mp3")
			if tt.wantSeek {
				if seek < 0 || seek > play {
					t.Errorf("Expected seek to 10 before play, got %v", calls)
				}
				if engine.Snapshot().Position != 10 {
					t.Errorf("Expected position 10, got %v", engine.Snapshot().Position)
				}
			} else {
				for _, call := range calls {
					if len(call) > 4 && call[:4] == "seek" {
						t.Errorf("Expected no seek for saved position %v, got %v", tt.saved, calls)
					}
				}
			}
		})
	}
}

func TestPlayTwiceEqualsPlayThenToggle(t *testing.T) {
	first, firstBackend, _ := newTestEngine(t)
	second, secondBackend, _ := newTestEngine(t)
	ep := episode("a")

	_ = first.Play(context.Background(), ep)
	_ = first.Play(context.Background(), ep)

	_ = second.Play(context.Background(), ep)
	_ = second.TogglePlay(context.Background())

	a, b := first.Snapshot(), second.Snapshot()
	if a.State != StatePaused || a.State != b.State || a.IsPlaying != b.IsPlaying {
		t.Errorf("Expected both engines paused, got %v and %v", a.State, b.State)
	}
	if !reflect.DeepEqual(firstBackend.history(), secondBackend.history()) {
		t.Errorf("Expected identical backend calls, got %v and %v", firstBackend.history(), secondBackend.history())
	}
}

func TestTogglePlayWithoutEpisode(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	if err := engine.TogglePlay(context.Background()); err != nil {
		t.Errorf("Expected no-op, got %v", err)
	}
	if calls := backend.history(); len(calls) != 0 {
		t.Errorf("Expected no backend calls, got %v", calls)
	}
}

func TestToggleResumes(t *testing.T) {
	engine, backend, store := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 7})

	_ = engine.TogglePlay(context.Background())
	if saves := store.savesFor("a"); len(saves) != 1 || saves[0].position != 7 {
		t.Errorf("Expected pause to save position 7, got %v", saves)
	}
	_ = engine.TogglePlay(context.Background())

	if snap := engine.Snapshot(); snap.State != StatePlaying {
		t.Errorf("Expected playing after resume, got %v", snap.State)
	}
	loads := 0
	for _, call := range backend.history() {
		if call == "load "+ep.AudioURL {
			loads++
		}
	}
	if loads != 1 {
		t.Errorf("Expected resume without reload, got %d loads", loads)
	}
}

func TestPlayMissingSource(t *testing.T) {
	engine, backend, _ := newTestEngine(t)

	err := engine.Play(context.Background(), &models.Episode{ID: "silent", Title: "No audio"})
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("Expected ErrMissingSource, got %v", err)
	}
	if snap := engine.Snapshot(); snap.Active() || snap.State != StateIdle {
		t.Errorf("Expected no state mutation, got %+v", snap)
	}
	if calls := backend.history(); len(calls) != 0 {
		t.Errorf("Expected backend untouched, got %v", calls)
	}
	if err := engine.Play(context.Background(), nil); !errors.Is(err, ErrMissingSource) {
		t.Errorf("Expected ErrMissingSource for nil episode, got %v", err)
	}
}

func TestPlayMissingSourceKeepsActiveEpisode(t *testing.T) {
	engine, _, store := newTestEngine(t)
	a := episode("a")
	_ = engine.Play(context.Background(), a)
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: a.AudioURL, Position: 33})

	if err := engine.Play(context.Background(), &models.Episode{ID: "silent"}); !errors.Is(err, ErrMissingSource) {
		t.Fatalf("Expected ErrMissingSource, got %v", err)
	}
	if snap := engine.Snapshot(); snap.Episode != a || snap.State != StatePlaying {
		t.Errorf("Expected episode a to stay active, got %+v", snap)
	}
	if saves := store.savesFor("a"); len(saves) == 0 || saves[len(saves)-1].position != 33 {
		t.Errorf("Expected current position flushed, got %v", saves)
	}
}

func TestPlayFlushesPreviousEpisode(t *testing.T) {
	engine, _, store := newTestEngine(t)
	a, b := episode("a"), episode("b")
	a.DeclaredDuration = 1800

	_ = engine.Play(context.Background(), a)
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: a.AudioURL, Position: 42})
	_ = engine.Play(context.Background(), b)

	saves := store.savesFor("a")
	if len(saves) == 0 {
		t.Fatal("Expected a to be flushed")
	}
	if last := saves[len(saves)-1]; last.position != 42 || last.duration != 1800 {
		t.Errorf("Expected a flushed at 42 with declared duration, got %+v", last)
	}
	if snap := engine.Snapshot(); snap.Episode != b {
		t.Errorf("Expected b active, got %+v", snap.Episode)
	}
}

func TestPlayBackendRejection(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	backend.playErr = errors.New("autoplay blocked")

	if err := engine.Play(context.Background(), episode("a")); err != nil {
		t.Fatalf("Expected rejection to be absorbed, got %v", err)
	}
	snap := engine.Snapshot()
	if snap.IsPlaying || snap.State != StatePaused || !snap.Active() {
		t.Errorf("Expected paused, not playing, got %+v", snap)
	}

	if err := engine.TogglePlay(context.Background()); err != nil {
		t.Errorf("Expected toggle rejection to be absorbed, got %v", err)
	}
	if engine.Snapshot().IsPlaying {
		t.Error("Expected isPlaying to stay false")
	}
}

func TestPlayLoadFailure(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	backend.loadErr = errors.New("unsupported")

	err := engine.Play(context.Background(), episode("a"))
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Expected ErrLoad, got %v", err)
	}
	if snap := engine.Snapshot(); snap.Active() || snap.State != StateIdle {
		t.Errorf("Expected session back to idle, got %+v", snap)
	}
}

func TestStaleResolutionIgnored(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	a, b := episode("a"), episode("b")

	entered := make(chan struct{})
	release := make(chan error)
	backend.playHook = func(source string) error {
		if source == a.AudioURL {
			close(entered)
			return <-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- engine.Play(context.Background(), a) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("backend Play for a was never called")
	}
	if snap := engine.Snapshot(); snap.State != StateLoading {
		t.Errorf("Expected loading while backend is pending, got %v", snap.State)
	}

	if err := engine.Play(context.Background(), b); err != nil {
		t.Fatalf("Play b failed: %v", err)
	}
	release <- errors.New("aborted")
	if err := <-done; err != nil {
		t.Errorf("Expected stale play to return nil, got %v", err)
	}

	snap := engine.Snapshot()
	if snap.Episode != b || snap.State != StatePlaying {
		t.Errorf("Expected b to win, got %v in state %v", snap.Episode.ID, snap.State)
	}
}

func TestSeekClamping(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)

	// Unknown duration clamps only the lower bound.
	engine.Seek(5000)
	if got := engine.Snapshot().Position; got != 5000 {
		t.Errorf("Expected 5000 with unknown duration, got %v", got)
	}
	engine.Seek(-3)
	if got := engine.Snapshot().Position; got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}

	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 100})

	tests := []struct {
		seek     float64
		expected float64
	}{
		{50, 50},
		{150, 100},
		{-1, 0},
		{100, 100},
	}
	for _, tt := range tests {
		engine.Seek(tt.seek)
		if got := engine.Snapshot().Position; got != tt.expected {
			t.Errorf("Seek(%v) position = %v, expected %v", tt.seek, got, tt.expected)
		}
	}
	if indexOfCall(backend.history(), "seek 100") < 0 {
		t.Errorf("Expected clamped seek to reach backend, got %v", backend.history())
	}
}

func TestSeekPropertyStaysInBounds(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 600})

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		if rng.Intn(2) == 0 {
			engine.Seek(rng.Float64()*2000 - 700)
		} else {
			engine.Skip(rng.Float64()*400 - 200)
		}
		snap := engine.Snapshot()
		if snap.Position < 0 || snap.Position > snap.Duration {
			t.Fatalf("position %v escaped [0, %v] after step %d", snap.Position, snap.Duration, i)
		}
	}
}

func TestSkip(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ep := episode("a")

	engine.Skip(15)
	if engine.Snapshot().Active() {
		t.Fatal("Skip without episode should be a no-op")
	}

	_ = engine.Play(context.Background(), ep)
	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 60})
	engine.Seek(20)
	engine.Skip(15)
	if got := engine.Snapshot().Position; got != 35 {
		t.Errorf("Expected 35, got %v", got)
	}
	engine.Skip(-100)
	if got := engine.Snapshot().Position; got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}
	engine.Skip(1000)
	if got := engine.Snapshot().Position; got != 60 {
		t.Errorf("Expected 60, got %v", got)
	}
}

func TestTickFlushThrottle(t *testing.T) {
	tests := []struct {
		name     string
		ticks    []float64
		expected []float64
	}{
		{"regular ticks", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 19, 20, 21, 25}, []float64{10, 20}},
		{"irregular ticks never skip", []float64{1.5, 9.7, 11.3, 18.9, 23.1}, []float64{11.3, 23.1}},
		{"repeated second", []float64{10, 10.4, 10.9}, []float64{10}},
		{"backwards seek", []float64{12, 35, 4}, []float64{12, 35, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, store := newTestEngine(t)
			ep := episode("a")
			_ = engine.Play(context.Background(), ep)

			for _, position := range tt.ticks {
				engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: position})
			}

			var got []float64
			for _, save := range store.savesFor("a") {
				got = append(got, save.position)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected flushes at %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestResumedSessionDoesNotFlushImmediately(t *testing.T) {
	engine, _, store := newTestEngine(t)
	store.records["a"] = progress.Record{Position: 42}
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)

	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 43})
	if saves := store.savesFor("a"); len(saves) != 0 {
		t.Errorf("Expected no flush inside the resumed bucket, got %v", saves)
	}
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 50})
	if saves := store.savesFor("a"); len(saves) != 1 {
		t.Errorf("Expected one flush at 50, got %v", saves)
	}
}

func TestEndedFlushesZero(t *testing.T) {
	engine, backend, store := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 300})
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 299})
	engine.HandleEvent(player.Event{Kind: player.EventEnded, Source: ep.AudioURL})

	snap := engine.Snapshot()
	if snap.State != StateEnded || snap.IsPlaying || snap.Position != 0 {
		t.Errorf("Expected ended at 0, got %+v", snap)
	}
	saves := store.savesFor("a")
	last := saves[len(saves)-1]
	if last.position != 0 || last.duration != 300 {
		t.Errorf("Expected final flush (0, 300), got %+v", last)
	}

	// Late ticks after the end do not move the position.
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 299})
	if engine.Snapshot().Position != 0 {
		t.Error("Expected tick after end to be ignored")
	}

	// Playing again reloads the source.
	_ = engine.TogglePlay(context.Background())
	if engine.Snapshot().State != StatePlaying {
		t.Errorf("Expected playing after restart, got %v", engine.Snapshot().State)
	}
	loads := 0
	for _, call := range backend.history() {
		if call == "load "+ep.AudioURL {
			loads++
		}
	}
	if loads != 2 {
		t.Errorf("Expected reload after end, got %d loads", loads)
	}
}

func TestSeekAfterEndedIsKept(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 100})
	engine.HandleEvent(player.Event{Kind: player.EventEnded, Source: ep.AudioURL})

	engine.Seek(40)
	if got := engine.Snapshot().Position; got != 40 {
		t.Fatalf("Expected position 40 after seek, got %v", got)
	}

	if err := engine.TogglePlay(context.Background()); err != nil {
		t.Fatalf("TogglePlay failed: %v", err)
	}
	snap := engine.Snapshot()
	if snap.State != StatePlaying || snap.Position != 40 {
		t.Errorf("Expected playing at 40, got state=%v position=%v", snap.State, snap.Position)
	}

	calls := backend.history()
	reload := -1
	for i, call := range calls {
		if call == "load "+ep.AudioURL {
			reload = i
		}
	}
	seek := -1
	for i := reload + 1; i < len(calls); i++ {
		if calls[i] == "seek 40" {
			seek = i
			break
		}
	}
	start := indexOfCall(calls[reload+1:], "play "+ep.AudioURL)
	if seek < 0 || start < 0 || seek > reload+1+start {
		t.Errorf("Expected seek 40 between reload and play, got %v", calls)
	}
}

func TestSnapshotSequenceIncreases(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	var (
		mu   sync.Mutex
		seqs []uint64
	)
	engine.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, snap.Seq)
	})

	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.Seek(20)
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 21})

	mu.Lock()
	defer mu.Unlock()
	if len(seqs) < 4 {
		t.Fatalf("Expected at least 4 notifications, got %v", seqs)
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Errorf("Expected increasing sequence numbers, got %v", seqs)
			break
		}
	}
	if current := engine.Snapshot().Seq; current != seqs[len(seqs)-1] {
		t.Errorf("Expected Snapshot to carry the last published sequence %d, got %d", seqs[len(seqs)-1], current)
	}
}

func TestEventsFromOtherSourceIgnored(t *testing.T) {
	engine, _, store := newTestEngine(t)
	_ = engine.Play(context.Background(), episode("a"))

	other := episode("b").AudioURL
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: other, Position: 55})
	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: other, Duration: 10})
	engine.HandleEvent(player.Event{Kind: player.EventEnded, Source: other})

	snap := engine.Snapshot()
	if snap.Position != 0 || snap.DurationKnown || snap.State != StatePlaying {
		t.Errorf("Expected session untouched, got %+v", snap)
	}
	if len(store.saves) != 0 {
		t.Errorf("Expected no saves, got %v", store.saves)
	}
}

func TestMetadataReclampsPosition(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.Seek(500)
	engine.HandleEvent(player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 120})

	snap := engine.Snapshot()
	if !snap.DurationKnown || snap.Duration != 120 || snap.Position != 120 {
		t.Errorf("Expected position clamped to 120, got %+v", snap)
	}
}

func TestSetRate(t *testing.T) {
	engine, backend, store := newTestEngine(t)

	for _, rate := range []float64{0, -1} {
		if err := engine.SetRate(rate); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("SetRate(%v) = %v, expected ErrInvalidRate", rate, err)
		}
	}
	if calls := backend.history(); len(calls) != 0 || store.settingsSaves != 0 {
		t.Errorf("Expected no mutation for invalid rates, got calls %v and %d saves", calls, store.settingsSaves)
	}

	if err := engine.SetRate(1.5); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if engine.Snapshot().Rate != 1.5 || backend.rate != 1.5 {
		t.Errorf("Expected rate 1.5, got %v", engine.Snapshot().Rate)
	}
	if got := store.GetPlayerSettings(); got != (progress.Settings{Volume: 1, Rate: 1.5}) {
		t.Errorf("Expected rate persisted, got %+v", got)
	}
}

func TestSetVolume(t *testing.T) {
	engine, backend, store := newTestEngine(t)

	tests := []struct {
		input    float64
		expected float64
	}{
		{0.4, 0.4},
		{1.5, 1},
		{-0.2, 0},
	}
	for _, tt := range tests {
		if err := engine.SetVolume(tt.input); err != nil {
			t.Fatalf("SetVolume(%v) failed: %v", tt.input, err)
		}
		if got := engine.Snapshot().Volume; got != tt.expected {
			t.Errorf("SetVolume(%v) volume = %v, expected %v", tt.input, got, tt.expected)
		}
		if backend.volume != tt.expected {
			t.Errorf("backend volume = %v, expected %v", backend.volume, tt.expected)
		}
		if got := store.GetPlayerSettings().Volume; got != tt.expected {
			t.Errorf("persisted volume = %v, expected %v", got, tt.expected)
		}
	}
}

func TestSessionAppliesSavedSettings(t *testing.T) {
	engine, backend, store := newTestEngine(t)
	store.settings = &progress.Settings{Volume: 0.3, Rate: 1.25}

	_ = engine.Play(context.Background(), episode("a"))

	snap := engine.Snapshot()
	if snap.Volume != 0.3 || snap.Rate != 1.25 {
		t.Errorf("Expected saved settings on session, got %+v", snap)
	}
	calls := backend.history()
	if indexOfCall(calls, "volume 0.3") < 0 || indexOfCall(calls, "rate 1.25") < 0 {
		t.Errorf("Expected saved settings applied to backend, got %v", calls)
	}
}

func TestSubscribe(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	var (
		mu     sync.Mutex
		states []State
	)
	unsubscribe := engine.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, snap.State)
	})

	_ = engine.Play(context.Background(), episode("a"))

	mu.Lock()
	got := append([]State(nil), states...)
	mu.Unlock()
	if !reflect.DeepEqual(got, []State{StateLoading, StatePlaying}) {
		t.Errorf("Expected loading then playing notifications, got %v", got)
	}

	unsubscribe()
	unsubscribe()
	engine.Seek(10)
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Errorf("Expected no notifications after unsubscribe, got %v", states)
	}
}

func TestListenerMayCallEngine(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	var seen []float64
	engine.Subscribe(func(snap Snapshot) {
		// Reading inside a notification must not deadlock.
		seen = append(seen, engine.Snapshot().Position)
	})
	_ = engine.Play(context.Background(), episode("a"))
	if len(seen) == 0 {
		t.Error("Expected notifications")
	}
}

func TestJumpToChapter(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	ep := episode("a")
	ep.Description = "⏩ 时间轴\n00:00｜开场\n01:30 | 嘉宾介绍\n10:05 正题\n"

	if err := engine.JumpToChapter(context.Background(), ep, 1); err != nil {
		t.Fatalf("JumpToChapter failed: %v", err)
	}
	snap := engine.Snapshot()
	if snap.Episode != ep || snap.Position != 90 || snap.ChapterIndex != 1 {
		t.Errorf("Expected episode at chapter 1 (90s), got position %v chapter %d", snap.Position, snap.ChapterIndex)
	}
	if indexOfCall(backend.history(), "seek 90") < 0 {
		t.Errorf("Expected backend seek to 90, got %v", backend.history())
	}

	_ = engine.TogglePlay(context.Background())
	if err := engine.JumpToChapter(context.Background(), ep, 2); err != nil {
		t.Fatalf("JumpToChapter failed: %v", err)
	}
	snap = engine.Snapshot()
	if snap.State != StatePlaying || snap.Position != 605 {
		t.Errorf("Expected resumed at 605, got %v at %v", snap.State, snap.Position)
	}

	if err := engine.JumpToChapter(context.Background(), ep, 9); !errors.Is(err, ErrNoChapter) {
		t.Errorf("Expected ErrNoChapter, got %v", err)
	}
}

func TestRunConsumesEvents(t *testing.T) {
	engine, backend, _ := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	backend.events <- player.Event{Kind: player.EventMetadata, Source: ep.AudioURL, Duration: 90}
	backend.events <- player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 12}

	deadline := time.After(2 * time.Second)
	for engine.Snapshot().Position != 12 {
		select {
		case <-deadline:
			t.Fatal("events were not consumed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	close(backend.events)
	if err := engine.Run(context.Background()); err != nil {
		t.Errorf("Expected nil when the stream closes, got %v", err)
	}
}

func TestCloseFlushesAndClosesBackend(t *testing.T) {
	engine, backend, store := newTestEngine(t)
	ep := episode("a")
	_ = engine.Play(context.Background(), ep)
	engine.HandleEvent(player.Event{Kind: player.EventTick, Source: ep.AudioURL, Position: 77})

	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	saves := store.savesFor("a")
	if len(saves) == 0 || saves[len(saves)-1].position != 77 {
		t.Errorf("Expected final flush at 77, got %v", saves)
	}
	if indexOfCall(backend.history(), "close") < 0 {
		t.Error("Expected backend to be closed")
	}
}
