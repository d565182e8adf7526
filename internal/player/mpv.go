package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csams/podcast-player/internal/logging"
)

const (
	defaultPollInterval  = time.Second
	defaultSocketTimeout = 5 * time.Second
	commandTimeout       = 2 * time.Second
)

// MPVOptions configures the mpv backend.
type MPVOptions struct {
	// Binary is the mpv executable; "mpv" when empty.
	Binary string
	// SocketPath is the JSON IPC socket. A per-process path in the temp
	// directory is used when empty.
	SocketPath string
	// Attach connects to an mpv already listening on SocketPath instead of
	// spawning one.
	Attach       bool
	PollInterval time.Duration
	// SocketTimeout bounds the wait for the IPC socket after start.
	SocketTimeout time.Duration
	Logger        *slog.Logger
}

func (o MPVOptions) socketTimeout() time.Duration {
	if o.SocketTimeout <= 0 {
		return defaultSocketTimeout
	}
	return o.SocketTimeout
}

type mpvCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitempty"`
}

type mpvResponse struct {
	Data      any    `json:"data"`
	RequestID int64  `json:"request_id"`
	Error     string `json:"error"`
}

type mpvEvent struct {
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	FileError string `json:"file_error,omitempty"`
}

// MPV drives an mpv process over its JSON IPC socket.
type MPV struct {
	opts   MPVOptions
	logger *slog.Logger

	startMu   sync.Mutex
	mu        sync.Mutex
	cmd       *exec.Cmd
	source    string
	started   bool
	startAt   float64
	volume    float64
	rate      float64
	pollStop  chan struct{}
	eventConn net.Conn
	closed    bool

	requestID atomic.Int64
	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewMPV creates the backend. mpv is started lazily on the first Play.
func NewMPV(opts MPVOptions) *MPV {
	if opts.Binary == "" {
		opts.Binary = "mpv"
	}
	if opts.SocketPath == "" {
		opts.SocketPath = fmt.Sprintf("%s/podcast-player-mpv-%d.sock", os.TempDir(), os.Getpid())
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &MPV{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "mpv"),
		volume: 1,
		rate:   1,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Events returns the event stream.
func (p *MPV) Events() <-chan Event {
	return p.events
}

// Load selects source for the next Play and stops whatever was playing.
func (p *MPV) Load(source string) error {
	if source == "" {
		return fmt.Errorf("failed to load: empty source")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrUnavailable
	}
	wasStarted := p.started
	p.stopPollingLocked()
	p.source = source
	p.started = false
	p.startAt = 0
	running := p.cmd != nil || p.opts.Attach
	p.mu.Unlock()

	if wasStarted && running {
		if _, err := p.sendCommand("stop"); err != nil {
			p.logger.Debug("failed to stop previous file", logging.Error(err))
		}
	}
	return nil
}

// Play loads the selected source into mpv on first call and unpauses.
func (p *MPV) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrUnavailable
	}
	if p.source == "" {
		p.mu.Unlock()
		return fmt.Errorf("failed to play: nothing loaded")
	}
	source := p.source
	started := p.started
	startAt := p.startAt
	volume, rate := p.volume, p.rate
	p.mu.Unlock()

	if err := p.ensureRunning(ctx); err != nil {
		return err
	}

	if started {
		if _, err := p.sendCommand("set_property", "pause", false); err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
		return nil
	}

	start := "none"
	if startAt > 0 {
		start = strconv.FormatFloat(startAt, 'f', 3, 64)
	}
	if _, err := p.sendCommand("set_property", "start", start); err != nil {
		return fmt.Errorf("failed to set start position: %w", err)
	}
	if _, err := p.sendCommand("set_property", "volume", volume*100); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	if _, err := p.sendCommand("set_property", "speed", rate); err != nil {
		return fmt.Errorf("failed to set speed: %w", err)
	}
	if _, err := p.sendCommand("loadfile", source, "replace"); err != nil {
		return fmt.Errorf("failed to load file: %w", err)
	}
	if _, err := p.sendCommand("set_property", "pause", false); err != nil {
		return fmt.Errorf("failed to unpause after loading file: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.source != source {
		// Superseded while loading.
		return nil
	}
	p.started = true
	p.startPollingLocked(source)
	p.logger.Debug("playback started", slog.String("source", source), slog.Float64("start", startAt))
	return nil
}

// Pause pauses playback of the current file.
func (p *MPV) Pause() error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	if _, err := p.sendCommand("set_property", "pause", true); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	return nil
}

// Seek moves to an absolute position, or sets the start position when the
// source has not started yet.
func (p *MPV) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	p.mu.Lock()
	if !p.started {
		p.startAt = seconds
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if _, err := p.sendCommand("seek", seconds, "absolute"); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// SetVolume maps a linear [0, 1] level to mpv's 0..100 scale.
func (p *MPV) SetVolume(volume float64) error {
	volume = min(max(volume, 0), 1)
	p.mu.Lock()
	p.volume = volume
	live := p.started
	p.mu.Unlock()
	if !live {
		return nil
	}
	if _, err := p.sendCommand("set_property", "volume", volume*100); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

// SetRate sets the playback speed.
func (p *MPV) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid rate %v", rate)
	}
	p.mu.Lock()
	p.rate = rate
	live := p.started
	p.mu.Unlock()
	if !live {
		return nil
	}
	if _, err := p.sendCommand("set_property", "speed", rate); err != nil {
		return fmt.Errorf("failed to set speed: %w", err)
	}
	return nil
}

// Close stops mpv and closes the event stream.
func (p *MPV) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.stopPollingLocked()
	close(p.done)
	if p.eventConn != nil {
		_ = p.eventConn.Close()
		p.eventConn = nil
	}
	cmd := p.cmd
	p.cmd = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_, _ = p.sendCommand("quit")

		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()
		select {
		case <-exited:
		case <-time.After(500 * time.Millisecond):
			p.logger.Warn("force killing mpv", slog.Int("pid", cmd.Process.Pid))
			if err := cmd.Process.Kill(); err != nil {
				p.logger.Warn("failed to kill mpv", logging.Error(err))
			}
			<-exited
		}
		_ = os.Remove(p.opts.SocketPath)
	}

	p.wg.Wait()
	close(p.events)
	return nil
}

// ensureRunning spawns mpv if needed and connects the event listener. p.mu is
// released while waiting for the socket; startMu keeps a single starter.
func (p *MPV) ensureRunning(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrUnavailable
	}
	if p.eventConn != nil {
		p.mu.Unlock()
		return nil
	}
	if !p.opts.Attach && p.cmd == nil {
		_ = os.Remove(p.opts.SocketPath)
		cmd := exec.Command(p.opts.Binary,
			"--no-video",
			"--really-quiet",
			"--no-terminal",
			"--input-ipc-server="+p.opts.SocketPath,
			"--idle=yes",
			"--force-window=no",
			"--keep-open=no",
		)
		if err := cmd.Start(); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("failed to start mpv: %w", err)
		}
		p.cmd = cmd
		p.logger.Info("mpv started", slog.Int("pid", cmd.Process.Pid), slog.String("socket", p.opts.SocketPath))
	}
	p.mu.Unlock()

	conn, err := p.waitForSocket(ctx)
	if err != nil {
		p.mu.Lock()
		cmd := p.cmd
		p.cmd = nil
		p.mu.Unlock()
		if cmd != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
		return err
	}

	enable, _ := json.Marshal(mpvCommand{Command: []any{"enable_event", "end-file"}})
	if _, err := conn.Write(append(enable, '\n')); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to enable events: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = conn.Close()
		return ErrUnavailable
	}
	p.eventConn = conn
	p.wg.Add(1)
	go p.handleEvents(conn)
	return nil
}

func (p *MPV) waitForSocket(ctx context.Context) (net.Conn, error) {
	deadline := time.Now().Add(p.opts.socketTimeout())
	for {
		conn, err := net.Dial("unix", p.opts.SocketPath)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("mpv socket not available: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, ErrUnavailable
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// sendCommand issues one IPC command on a fresh connection.
func (p *MPV) sendCommand(args ...any) (*mpvResponse, error) {
	conn, err := net.Dial("unix", p.opts.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mpv socket: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(commandTimeout))

	id := p.requestID.Add(1)
	data, err := json.Marshal(mpvCommand{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write command: %w", err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		var response mpvResponse
		if err := json.Unmarshal(line, &response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		// Events can interleave with replies on any connection.
		if response.RequestID != id {
			continue
		}
		if response.Error != "" && response.Error != "success" {
			return &response, fmt.Errorf("mpv error: %s", response.Error)
		}
		return &response, nil
	}
}

func (p *MPV) getFloat(property string) (float64, bool) {
	resp, err := p.sendCommand("get_property", property)
	if err != nil {
		return 0, false
	}
	value, ok := resp.Data.(float64)
	return value, ok
}

func (p *MPV) startPollingLocked(source string) {
	stop := make(chan struct{})
	p.pollStop = stop
	p.wg.Add(1)
	go p.poll(source, stop)
}

func (p *MPV) stopPollingLocked() {
	if p.pollStop != nil {
		close(p.pollStop)
		p.pollStop = nil
	}
}

// poll reports position and duration of source until stopped.
func (p *MPV) poll(source string, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	var lastDuration float64
	for {
		select {
		case <-stop:
			return
		case <-p.done:
			return
		case <-ticker.C:
		}

		if duration, ok := p.getFloat("duration"); ok && duration > 0 && duration != lastDuration {
			lastDuration = duration
			p.emit(Event{Kind: EventMetadata, Source: source, Duration: duration}, stop)
		}
		if position, ok := p.getFloat("time-pos"); ok && position >= 0 {
			p.emit(Event{Kind: EventTick, Source: source, Position: position, Duration: lastDuration}, stop)
		}
	}
}

func (p *MPV) handleEvents(conn net.Conn) {
	defer p.wg.Done()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			select {
			case <-p.done:
			default:
				p.logger.Warn("mpv event stream closed", logging.Error(err))
				p.mu.Lock()
				if p.eventConn == conn {
					p.eventConn = nil
					p.started = false
					p.stopPollingLocked()
				}
				p.mu.Unlock()
			}
			return
		}

		var event mpvEvent
		if err := json.Unmarshal(line, &event); err != nil || event.Event != "end-file" {
			continue
		}

		p.mu.Lock()
		source := p.source
		started := p.started
		if event.Reason == "eof" && started {
			p.started = false
			p.stopPollingLocked()
		}
		p.mu.Unlock()

		switch event.Reason {
		case "eof":
			if started {
				p.emit(Event{Kind: EventEnded, Source: source}, nil)
			}
		case "error":
			p.logger.Warn("mpv failed to play file", slog.String("source", source), slog.String("error", event.FileError))
		}
	}
}

// emit delivers event unless the backend closes or stop fires first.
func (p *MPV) emit(event Event, stop <-chan struct{}) {
	select {
	case p.events <- event:
	case <-stop:
	case <-p.done:
	}
}

var _ Backend = (*MPV)(nil)
