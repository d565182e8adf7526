// Package ui is the terminal interface: an episode table, a detail pane with
// summary, tags and chapters, and a status bar driven by playback snapshots.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/playback"
	"github.com/csams/podcast-player/internal/search"
	"github.com/csams/podcast-player/internal/timecode"
)

// Controller is the playback surface the UI drives.
type Controller interface {
	Snapshot() playback.Snapshot
	Subscribe(fn func(playback.Snapshot)) (unsubscribe func())
	Play(ctx context.Context, episode *models.Episode) error
	TogglePlay(ctx context.Context) error
	Skip(delta float64)
	SetVolume(v float64) error
	SetRate(r float64) error
	JumpToChapter(ctx context.Context, episode *models.Episode, index int) error
}

// ProgressStore reads and clears saved positions.
type ProgressStore interface {
	ProgressReader
	ClearProgress(episodeID string)
}

// Options configures the App.
type Options struct {
	Controller   Controller
	Progress     ProgressStore
	Catalog      *models.Catalog
	SkipSeconds  float64
	VolumeStep   float64
	SpeedPresets []float64
	Logger       *slog.Logger
	// Screen overrides the terminal screen; tests pass a simulation screen.
	Screen tcell.Screen
}

type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
)

type App struct {
	ctx        context.Context
	screen     tcell.Screen
	controller Controller
	progress   ProgressStore
	logger     *slog.Logger

	mode          Mode
	episodes      *EpisodeListView
	search        *SearchState
	helpDialog    *HelpDialog
	confirmDialog *ConfirmationDialog

	snapshot      playback.Snapshot
	statusMessage string
	statusIsError bool
	quit          bool

	skipSeconds  float64
	volumeStep   float64
	speedPresets []float64

	// async runs playback commands off the event loop.
	async func(func())
}

// Interrupt payloads delivered through the screen's event queue.
type (
	snapshotEvent struct{ snap playback.Snapshot }
	catalogEvent  struct{ catalog *models.Catalog }
	statusEvent   struct {
		message string
		isError bool
	}
	quitEvent struct{}
)

func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	presets := opts.SpeedPresets
	if len(presets) == 0 {
		presets = []float64{0.5, 0.75, 1, 1.25, 1.5, 2}
	}

	var reader ProgressReader
	if opts.Progress != nil {
		reader = opts.Progress
	}

	app := &App{
		ctx:           context.Background(),
		screen:        opts.Screen,
		controller:    opts.Controller,
		progress:      opts.Progress,
		logger:        logging.NewComponentLogger(logger, "ui"),
		episodes:      NewEpisodeListView(search.NewMatcher(), reader),
		search:        NewSearchState(),
		helpDialog:    NewHelpDialog(),
		confirmDialog: NewConfirmationDialog(),
		skipSeconds:   valueOr(opts.SkipSeconds, 15),
		volumeStep:    valueOr(opts.VolumeStep, 0.1),
		speedPresets:  presets,
		async:         func(fn func()) { go fn() },
	}
	app.snapshot = opts.Controller.Snapshot()
	app.episodes.SetSnapshot(app.snapshot)
	app.episodes.SetCatalog(opts.Catalog)
	return app
}

func valueOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// Run shows the UI until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to create screen: %w", err)
		}
		a.screen = s
	}
	if err := a.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer a.screen.Fini()

	a.screen.SetStyle(styleDefault)
	a.screen.Clear()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx

	unsubscribe := a.controller.Subscribe(func(snap playback.Snapshot) {
		a.post(snapshotEvent{snap: snap})
	})
	defer unsubscribe()
	a.applySnapshot(a.controller.Snapshot())

	go func() {
		<-ctx.Done()
		a.post(quitEvent{})
	}()

	a.logger.Info("ui started")
	a.draw()
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if !a.handleEvent(ev) {
			a.logger.Info("ui stopped")
			return nil
		}
	}
}

// SetCatalog swaps the shown catalog; safe to call from any goroutine.
func (a *App) SetCatalog(catalog *models.Catalog) {
	a.post(catalogEvent{catalog: catalog})
}

// ReportError shows err in the status bar; safe to call from any goroutine.
func (a *App) ReportError(err error) {
	a.post(statusEvent{message: errorMessage(err), isError: true})
}

func (a *App) post(data any) {
	if a.screen == nil {
		return
	}
	if err := a.screen.PostEvent(tcell.NewEventInterrupt(data)); err != nil {
		a.logger.Debug("dropped ui event", logging.Error(err))
	}
}

// handleEvent processes one screen event and reports whether to keep running.
func (a *App) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
		a.draw()
	case *tcell.EventKey:
		if a.handleKey(ev) {
			a.draw()
		}
		return !a.quit
	case *tcell.EventInterrupt:
		switch data := ev.Data().(type) {
		case snapshotEvent:
			a.applySnapshot(data.snap)
		case catalogEvent:
			a.episodes.SetCatalog(data.catalog)
			a.setStatus("Catalog reloaded", false)
		case statusEvent:
			a.setStatus(data.message, data.isError)
		case quitEvent:
			return false
		}
		a.draw()
	}
	return true
}

func (a *App) applySnapshot(snap playback.Snapshot) {
	previous := a.snapshot
	// Snapshots are delivered from several goroutines
	if snap.Seq < previous.Seq {
		return
	}
	a.snapshot = snap
	a.episodes.SetSnapshot(snap)

	if snap.Active() && snap.State == playback.StateEnded && previous.State != playback.StateEnded {
		a.setStatus("Finished: "+snap.Episode.Title, false)
	}
}

func (a *App) setStatus(message string, isError bool) {
	a.statusMessage = message
	a.statusIsError = isError
	if isError {
		a.logger.Warn("ui error", slog.String("message", message))
	}
}

func (a *App) clearStatusMessage() {
	a.statusMessage = ""
	a.statusIsError = false
}

// run executes a playback command off the event loop and reports failures.
func (a *App) run(fn func() error) {
	a.async(func() {
		if err := fn(); err != nil {
			a.post(statusEvent{message: errorMessage(err), isError: true})
		}
	})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, playback.ErrMissingSource):
		return "Episode has no audio source"
	case errors.Is(err, playback.ErrNoChapter):
		return "No such chapter"
	case errors.Is(err, playback.ErrInvalidRate):
		return "Invalid playback speed"
	default:
		return "Error: " + err.Error()
	}
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	// Dialogs take precedence over all other input
	if a.helpDialog.IsVisible() {
		return a.helpDialog.HandleKey(ev)
	}
	if a.confirmDialog.IsVisible() {
		return a.confirmDialog.HandleKey(ev)
	}
	if a.mode == ModeSearch {
		return a.handleSearchKey(ev)
	}

	switch ev.Key() {
	case tcell.KeyEnter:
		a.activateSelection()
		return true
	case tcell.KeyTab:
		return a.episodes.ToggleFocus()
	case tcell.KeyLeft:
		a.skip(-a.skipSeconds)
		return true
	case tcell.KeyRight:
		a.skip(a.skipSeconds)
		return true
	case tcell.KeyEscape:
		if a.episodes.Filter() != "" {
			a.search.Clear()
			a.episodes.SetFilter("")
			return true
		}
		a.clearStatusMessage()
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			a.quit = true
			return false
		case '?':
			a.helpDialog.Show()
			return true
		case '/':
			a.mode = ModeSearch
			a.search.SetQuery(a.episodes.Filter())
			return true
		case ' ':
			a.run(func() error { return a.controller.TogglePlay(a.ctx) })
			return true
		case '+':
			a.changeVolume(a.volumeStep)
			return true
		case '-':
			a.changeVolume(-a.volumeStep)
			return true
		case '[':
			a.changeSpeed(-1)
			return true
		case ']':
			a.changeSpeed(1)
			return true
		case '=':
			a.setRate(1)
			return true
		case 'x':
			a.confirmClearProgress()
			return true
		}
	}

	a.clearStatusMessage()
	return a.episodes.HandleKey(ev)
}

func (a *App) handleSearchKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		a.mode = ModeNormal
		a.search.Clear()
		a.episodes.SetFilter("")
		return true
	case tcell.KeyEnter:
		a.mode = ModeNormal
		return true
	case tcell.KeyUp, tcell.KeyDown:
		return a.episodes.HandleKey(ev)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		a.search.DeleteChar()
	case tcell.KeyDelete:
		a.search.DeleteCharForward()
	case tcell.KeyLeft:
		a.search.MoveCursorLeft()
		return true
	case tcell.KeyRight:
		a.search.MoveCursorRight()
		return true
	case tcell.KeyCtrlA:
		a.search.MoveCursorStart()
		return true
	case tcell.KeyCtrlE:
		a.search.MoveCursorEnd()
		return true
	case tcell.KeyCtrlK:
		a.search.DeleteToEnd()
	case tcell.KeyCtrlW:
		a.search.DeleteWord()
	case tcell.KeyRune:
		if ev.Modifiers()&tcell.ModAlt != 0 {
			switch ev.Rune() {
			case 'f':
				a.search.MoveCursorWordForward()
			case 'b':
				a.search.MoveCursorWordBackward()
			}
			return true
		}
		a.search.InsertChar(ev.Rune())
	default:
		return false
	}

	a.episodes.SetFilter(a.search.Query())
	return true
}

func (a *App) activateSelection() {
	episode := a.episodes.Selected()
	if episode == nil {
		return
	}
	if a.episodes.FocusChapters() {
		index := a.episodes.SelectedChapter()
		a.run(func() error { return a.controller.JumpToChapter(a.ctx, episode, index) })
		return
	}
	a.clearStatusMessage()
	a.run(func() error { return a.controller.Play(a.ctx, episode) })
}

func (a *App) skip(delta float64) {
	if !a.snapshot.Active() {
		return
	}
	a.async(func() { a.controller.Skip(delta) })
}

func (a *App) changeVolume(delta float64) {
	volume := math.Round((a.snapshot.Volume+delta)*100) / 100
	volume = min(max(volume, 0), 1)
	a.snapshot.Volume = volume
	a.setStatus(fmt.Sprintf("Volume %d%%", int(math.Round(volume*100))), false)
	a.run(func() error { return a.controller.SetVolume(volume) })
}

func (a *App) changeSpeed(direction int) {
	a.setRate(nextPreset(a.speedPresets, a.snapshot.Rate, direction))
}

func (a *App) setRate(rate float64) {
	a.snapshot.Rate = rate
	a.setStatus(fmt.Sprintf("Speed %gx", rate), false)
	a.run(func() error { return a.controller.SetRate(rate) })
}

// nextPreset returns the neighbouring preset of current in direction.
// It stays on the first or last preset at either end.
func nextPreset(presets []float64, current float64, direction int) float64 {
	const epsilon = 1e-9
	if len(presets) == 0 {
		return current
	}
	if direction > 0 {
		for _, preset := range presets {
			if preset > current+epsilon {
				return preset
			}
		}
		return presets[len(presets)-1]
	}
	for i := len(presets) - 1; i >= 0; i-- {
		if presets[i] < current-epsilon {
			return presets[i]
		}
	}
	return presets[0]
}

func (a *App) confirmClearProgress() {
	episode := a.episodes.Selected()
	if episode == nil || a.progress == nil {
		return
	}
	a.confirmDialog.Show(
		"Clear Progress",
		fmt.Sprintf("Forget the saved position of %q?", episode.Title),
		func() {
			a.progress.ClearProgress(episode.ID)
			a.setStatus("Progress cleared", false)
		},
		nil,
	)
}

func (a *App) draw() {
	w, h := a.screen.Size()
	for y := 0; y < h; y++ {
		fillRow(a.screen, y, w, styleDefault)
	}

	a.episodes.Draw(a.screen)
	a.drawStatusBar()

	a.helpDialog.Draw(a.screen)
	a.confirmDialog.Draw(a.screen)

	a.screen.Show()
}

// formatStatus renders the right-hand side of the status bar.
func formatStatus(snap playback.Snapshot, width int) string {
	if !snap.Active() {
		return ""
	}

	icon := ""
	switch snap.State {
	case playback.StatePlaying:
		icon = "▶"
	case playback.StatePaused:
		icon = "⏸"
	case playback.StateLoading:
		icon = "…"
	case playback.StateEnded:
		icon = "■"
	}

	duration := "--:--"
	if snap.DurationKnown {
		duration = timecode.Clock(snap.Duration)
	}

	parts := []string{
		truncate(snap.Episode.Title, max(width/3, 20)),
		fmt.Sprintf("[%s %s/%s]", icon, timecode.Clock(snap.Position), duration),
	}
	if snap.Rate != 1 {
		parts = append(parts, fmt.Sprintf("[%gx]", snap.Rate))
	}
	if snap.Volume != 1 {
		parts = append(parts, fmt.Sprintf("[Vol:%d%%]", int(math.Round(snap.Volume*100))))
	}
	return strings.Join(parts, " ")
}

func (a *App) drawStatusBar() {
	w, h := a.screen.Size()
	y := h - 1
	fillRow(a.screen, y, w, styleStatusBar)

	modeStr := "NORMAL"
	if a.episodes.FocusChapters() {
		modeStr = "CHAPTERS"
	}
	if a.mode == ModeSearch {
		modeStr = "/" + a.search.Query()
	}
	drawText(a.screen, 0, y, styleStatusBar, modeStr)

	if a.mode == ModeSearch {
		cursorX := 1 + a.search.CursorColumn()
		a.screen.SetContent(cursorX, y, ' ', nil, styleStatusBar.Reverse(true))
		if a.search.cursorPos < len(a.search.query) {
			a.screen.SetContent(cursorX, y, a.search.query[a.search.cursorPos], nil, styleStatusBar.Reverse(true))
		}
	}

	playerStatus := formatStatus(a.snapshot, w)
	statusWidth := runewidth.StringWidth(playerStatus)
	if playerStatus != "" {
		style := styleStatusBar.Foreground(ColorPlaying)
		if a.snapshot.State != playback.StatePlaying {
			style = styleStatusBar.Foreground(ColorPaused)
		}
		drawText(a.screen, max(w-statusWidth-1, 0), y, style, playerStatus)
	}

	if a.statusMessage != "" {
		msgStyle := styleStatusBar.Foreground(ColorYellow)
		if a.statusIsError {
			msgStyle = styleStatusBar.Foreground(ColorError)
		}
		modeWidth := runewidth.StringWidth(modeStr)
		maxMsgWidth := w - modeWidth - statusWidth - 4
		if maxMsgWidth > 0 {
			drawText(a.screen, modeWidth+2, y, msgStyle, truncate(a.statusMessage, maxMsgWidth))
		}
	}
}
