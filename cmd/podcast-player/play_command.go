package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/csams/podcast-player/internal/logging"
	"github.com/csams/podcast-player/internal/playback"
	"github.com/csams/podcast-player/internal/progress"
	"github.com/csams/podcast-player/internal/timecode"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var start string
	var chapter int

	cmd := &cobra.Command{
		Use:   "play <episode-id>",
		Short: "Play an episode without the terminal UI",
		Long: "Play an episode from its saved position and print the playback clock.\n" +
			"When stdout is not a terminal one line is printed per second.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, episode, err := ctx.findEpisode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			interactive := isTerminal(out)

			logger, closer, err := ctx.newLogger(interactive)
			if err != nil {
				return err
			}
			defer closer.Close()

			startAt, err := parseStart(start)
			if err != nil {
				return err
			}

			backend, err := ctx.newBackend(logger)
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()

			return ctx.withProgress(logger, func(store *progress.Store) error {
				engine := playback.New(backend, store, playback.Options{
					ResumeThreshold: cfg.Player.ResumeThreshold,
					FlushInterval:   cfg.Player.FlushInterval,
					Logger:          logger,
				})
				defer func() {
					if err := engine.Close(); err != nil {
						logger.Warn("failed to close engine", logging.Error(err))
					}
				}()

				runCtx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go func() { _ = engine.Run(runCtx) }()

				printer := newClockPrinter(out, interactive)
				finished := make(chan struct{})
				var once sync.Once
				unsubscribe := engine.Subscribe(func(snap playback.Snapshot) {
					if snap.State == playback.StateEnded {
						once.Do(func() { close(finished) })
						return
					}
					printer.print(snap)
				})
				defer unsubscribe()

				if chapter >= 0 {
					err = engine.JumpToChapter(runCtx, episode, chapter)
				} else {
					err = engine.Play(runCtx, episode)
				}
				if err != nil {
					return err
				}
				if startAt > 0 {
					engine.Seek(startAt)
				}

				select {
				case <-finished:
					printer.finish()
					fmt.Fprintf(out, "Finished %s\n", episode.Title)
				case <-runCtx.Done():
					printer.finish()
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start position in seconds or as MM:SS / HH:MM:SS")
	cmd.Flags().IntVar(&chapter, "chapter", -1, "Start at the chapter with this index")
	return cmd
}

func parseStart(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if strings.Contains(value, ":") {
		seconds := timecode.ClockToSeconds(value)
		if seconds == 0 && strings.Trim(value, "0:") != "" {
			return 0, fmt.Errorf("invalid start position %q", value)
		}
		return float64(seconds), nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("invalid start position %q", value)
	}
	return seconds, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// clockPrinter writes the playback clock once per whole second, either as
// a redrawn status line or as plain lines for pipes.
type clockPrinter struct {
	out         io.Writer
	interactive bool

	mu         sync.Mutex
	lastSecond int
	lastState  playback.State
	dirty      bool
}

func newClockPrinter(out io.Writer, interactive bool) *clockPrinter {
	return &clockPrinter{out: out, interactive: interactive, lastSecond: -1}
}

func (p *clockPrinter) print(snap playback.Snapshot) {
	if !snap.Active() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	second := int(snap.Position)
	if second == p.lastSecond && snap.State == p.lastState {
		return
	}
	p.lastSecond = second
	p.lastState = snap.State

	line := clockLine(snap)
	if p.interactive {
		fmt.Fprintf(p.out, "\r\033[K%s", line)
		p.dirty = true
		return
	}
	fmt.Fprintln(p.out, line)
}

func (p *clockPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprintln(p.out)
		p.dirty = false
	}
}

func clockLine(snap playback.Snapshot) string {
	duration := "--:--"
	if snap.DurationKnown {
		duration = timecode.Clock(snap.Duration)
	}
	line := fmt.Sprintf("[%s] %s / %s", snap.State, timecode.Clock(snap.Position), duration)
	if snap.ChapterIndex >= 0 && snap.ChapterIndex < len(snap.Chapters) {
		line += "  " + snap.Chapters[snap.ChapterIndex].Title
	}
	return line
}
