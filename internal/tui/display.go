package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gammazero/channelqueue"
	"github.com/mattn/go-isatty"
	"github.com/smileynet/envdash/internal/orchestrator"
	"github.com/smileynet/envdash/internal/source"
)

// DisplayEvent is an event sent to a Display via the update channel.
// Implemented by StateMsg, WatchDoneMsg, and WatchErrorMsg.
type DisplayEvent interface {
	isDisplayEvent()
}

// Verify at compile time that message types implement DisplayEvent.
var (
	_ DisplayEvent = StateMsg{}
	_ DisplayEvent = WatchDoneMsg{}
	_ DisplayEvent = WatchErrorMsg{}
)

// Display renders orchestrator state as it is published.
type Display interface {
	Run(ctx context.Context, events <-chan DisplayEvent) error
}

// DisplayOptions configures display creation.
type DisplayOptions struct {
	Writer     io.Writer          // Output destination (default: os.Stdout).
	ForcePlain bool               // Force plain text even if TTY.
	Target     string             // Backend label shown in the header.
	Window     int                // Dashboard window in hours.
	CancelFunc context.CancelFunc // Called by TUI on quit keypress (ignored by PlainDisplay).
}

// NewDisplay returns a TUI display when stdout is a TTY, or a plain text
// display otherwise. ForcePlain overrides TTY detection.
func NewDisplay(opts DisplayOptions) Display {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	if opts.ForcePlain || !isTTY(opts.Writer) {
		return &PlainDisplay{w: opts.Writer}
	}

	return &TUIDisplay{opts: opts}
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return IsTerminal(f)
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Bridge carries orchestrator state publications to a Display consumer.
// The queue is unbounded, so a slow display never blocks the orchestrator.
type Bridge struct {
	q *channelqueue.ChannelQueue[DisplayEvent]

	mu     sync.Mutex
	closed bool
}

// NewBridge creates a Bridge backed by an unbounded queue.
func NewBridge() *Bridge {
	return &Bridge{q: channelqueue.New[DisplayEvent](-1)}
}

// Events returns the read-only channel for Display.Run() to consume. It is
// closed after Done or Error once every queued event has been read.
func (b *Bridge) Events() <-chan DisplayEvent {
	return b.q.Out()
}

// Observe enqueues a state snapshot. It has the orchestrator.Observer
// signature so it can be passed to Subscribe. Snapshots arriving after the
// bridge is closed are dropped.
func (b *Bridge) Observe(s orchestrator.State) {
	b.send(StateMsg{State: s}, false)
}

// Done signals that watching ended normally and closes the bridge.
func (b *Bridge) Done() {
	b.send(WatchDoneMsg{}, true)
}

// Error signals that watching ended with err and closes the bridge.
func (b *Bridge) Error(err error) {
	b.send(WatchErrorMsg{Err: err}, true)
}

func (b *Bridge) send(ev DisplayEvent, last bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.q.In() <- ev
	if last {
		b.closed = true
		close(b.q.In())
	}
}

// PlainDisplay renders state changes as timestamped text lines.
type PlainDisplay struct {
	w    io.Writer
	last string
}

// Run loops over events, printing a line whenever the rendered state changes.
// Returns the watch error if watching failed, or context error if cancelled.
func (d *PlainDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch msg := ev.(type) {
			case StateMsg:
				d.render(msg.State)
			case WatchDoneMsg:
				return nil
			case WatchErrorMsg:
				return msg.Err
			}
		}
	}
}

func (d *PlainDisplay) render(s orchestrator.State) {
	line := describe(s)
	if line == d.last {
		return
	}
	d.last = line
	_, _ = fmt.Fprintf(d.w, "[%s] %s\n", time.Now().Format("15:04:05"), line)
}

// describe summarises a state on one line.
func describe(s orchestrator.State) string {
	var parts []string
	switch {
	case s.Loading:
		parts = append(parts, "refreshing")
	case s.Data == nil && s.Error == "":
		parts = append(parts, "waiting")
	}
	if s.Data != nil {
		parts = append(parts, "updated "+s.LastUpdated.Local().Format("15:04:05"), sectionSummary(s.Data))
	}
	if s.Error != "" {
		parts = append(parts, "error: "+s.Error)
	}
	return strings.Join(parts, " | ")
}

// sectionSummary renders "weather=2 meteo=1 ...".
func sectionSummary(d *source.Dashboard) string {
	sections := d.Sections()
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = fmt.Sprintf("%s=%d", strings.ReplaceAll(s.Name, " ", "_"), s.Count)
	}
	return strings.Join(out, " ")
}

// TUIDisplay renders state using a Bubble Tea terminal UI.
// Falls back to PlainDisplay if the TUI program fails to start.
type TUIDisplay struct {
	opts DisplayOptions
}

// Run starts the Bubble Tea program and feeds events from the channel.
// If the TUI fails to initialize, it falls back to plain text output.
func (d *TUIDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	var opts []ModelOption
	if d.opts.CancelFunc != nil {
		opts = append(opts, WithCancelFunc(d.opts.CancelFunc))
	}
	model := NewModel(d.opts.Target, d.opts.Window, opts...)
	p := tea.NewProgram(model, tea.WithOutput(d.opts.Writer), tea.WithContext(ctx))

	// Forward events through an intermediate channel so we can stop
	// the goroutine cleanly on TUI failure before falling back.
	fwd := make(chan DisplayEvent, 16)
	stop := make(chan struct{})

	go func() {
		defer close(fwd)
		for ev := range events {
			select {
			case fwd <- ev:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for ev := range fwd {
			p.Send(ev)
		}
	}()

	final, err := p.Run()
	if err != nil {
		close(stop)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Fall back to plain text for remaining events from the original channel.
		plain := &PlainDisplay{w: d.opts.Writer}
		return plain.Run(ctx, events)
	}

	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
