// Package console renders conversation events as the chat view a demo
// audience watches: colored persona labels, timestamps, wrapped message
// bodies.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"duet/internal/event"
	"duet/internal/persona"
)

// DefaultWidth is the wrap column for message bodies.
const DefaultWidth = 72

// Options tune how events are printed.
type Options struct {
	// Width is the wrap column for message bodies. Zero means DefaultWidth,
	// negative disables wrapping.
	Width int
	// Color enables ANSI styling. Leave it off when output is not a
	// terminal.
	Color bool
	// Verbose also prints readiness, instruction and skipped-turn lines.
	Verbose bool
}

// Renderer prints conversation events to out. Safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	color   bool
	verbose bool
	labels  map[string]renderFn
	bodies  map[string]renderFn
}

// NewRenderer builds a renderer for the given personas. Each persona gets
// the color it asked for, or a per-slot default.
func NewRenderer(out io.Writer, personas []persona.Persona, opts Options) *Renderer {
	width := opts.Width
	if width == 0 {
		width = DefaultWidth
	}
	r := &Renderer{
		out:     out,
		width:   width,
		color:   opts.Color,
		verbose: opts.Verbose,
		labels:  make(map[string]renderFn, len(personas)),
		bodies:  make(map[string]renderFn, len(personas)),
	}
	for i, p := range personas {
		color := personaColor(p.Color, i)
		r.labels[p.Name] = labelStyle(color)
		r.bodies[p.Name] = textStyle(color)
	}
	return r
}

// Handle prints one event. Events the console does not display are dropped
// silently so the renderer can share a bus with richer consumers.
func (r *Renderer) Handle(ev event.Event) {
	if r == nil || ev == nil {
		return
	}
	switch e := ev.(type) {
	case event.ConversationStarted:
		r.line(e.Timestamp(), noteStyle, fmt.Sprintf("💕 Setting up a conversation about: %s (%s)", e.Scenario, e.Transport))
	case event.AgentReady:
		if r.verbose {
			r.line(e.Timestamp(), noteStyle, fmt.Sprintf("✅ %s is ready (%s)", e.Agent, e.Model))
		}
	case event.InstructionsSent:
		if r.verbose {
			r.line(e.Timestamp(), noteStyle, fmt.Sprintf("📨 Role instructions sent to %s (%d chars)", e.Agent, e.Chars))
		}
	case event.MessagePosted:
		r.message(e)
	case event.TurnSkipped:
		if r.verbose {
			r.skip(e)
		}
	case event.PersonasReloaded:
		r.line(e.Timestamp(), noteStyle, fmt.Sprintf("🔁 Personas reloaded from %s", e.Path))
	case event.ConversationEnded:
		r.ended(e)
	}
}

// message prints the label header, the wrapped body in the persona's color,
// and a blank separator line.
func (r *Renderer) message(ev event.MessagePosted) {
	label := ev.Label
	if label == "" {
		label = ev.Agent
	}
	suffix := ""
	if r.verbose && ev.Elapsed > 0 {
		suffix = " " + r.paint(timestampStyle, "("+ev.Elapsed.Round(100*time.Millisecond).String()+")")
	}
	body := ev.Text
	if r.width > 0 {
		body = wordwrap.String(body, r.width)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s%s\n%s\n\n",
		r.paint(timestampStyle, stamp(ev.Timestamp())),
		r.paint(r.labels[ev.Agent], label+" ➤"),
		suffix,
		r.paint(r.bodies[ev.Agent], body))
}

func (r *Renderer) skip(ev event.TurnSkipped) {
	switch ev.Reason {
	case event.SkipDuplicateReply:
		r.line(ev.Timestamp(), noteStyle, fmt.Sprintf("🔄 Duplicate response from %s, skipping", ev.Agent))
	case event.SkipEmptyReply:
		r.line(ev.Timestamp(), alertStyle, fmt.Sprintf("⚠️ Empty response from %s, skipping", ev.Agent))
	case event.SkipReplyFailed:
		r.line(ev.Timestamp(), alertStyle, fmt.Sprintf("⚠️ No response from %s, skipping", ev.Agent))
	default:
		r.line(ev.Timestamp(), alertStyle, fmt.Sprintf("⚠️ Turn from %s skipped (%s)", ev.Agent, ev.Reason))
	}
}

func (r *Renderer) ended(ev event.ConversationEnded) {
	elapsed := ev.Duration.Round(time.Second)
	switch ev.Reason {
	case event.EndStalled:
		r.line(ev.Timestamp(), alertStyle, fmt.Sprintf("⚠️ Conversation stalled after %d turns (%s)", ev.Turns, elapsed))
	case event.EndFailed:
		r.line(ev.Timestamp(), alertStyle, fmt.Sprintf("❌ Conversation failed after %d turns (%s)", ev.Turns, elapsed))
	case event.EndInterrupted:
		r.line(ev.Timestamp(), noteStyle, fmt.Sprintf("👋 Conversation interrupted after %d turns (%s)", ev.Turns, elapsed))
	case event.EndMaxTurns:
		r.line(ev.Timestamp(), noteStyle, fmt.Sprintf("👋 Conversation finished after %d turns (%s)", ev.Turns, elapsed))
	default:
		r.line(ev.Timestamp(), noteStyle, fmt.Sprintf("👋 Conversation ended after %d turns (%s)", ev.Turns, elapsed))
	}
}

// Banner prints the welcome header shown before the scenario prompt.
func (r *Renderer) Banner() {
	r.bare(bannerStyle, "Welcome to AI text message conversation Simulator!")
}

// Notef prints an untimestamped status line in the muted color.
func (r *Renderer) Notef(format string, args ...any) {
	r.bare(noteStyle, fmt.Sprintf(format, args...))
}

// Successf prints an untimestamped status line in the success color.
func (r *Renderer) Successf(format string, args ...any) {
	r.bare(successStyle, fmt.Sprintf(format, args...))
}

func (r *Renderer) line(at time.Time, style renderFn, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", r.paint(timestampStyle, stamp(at)), r.paint(style, msg))
}

func (r *Renderer) bare(style renderFn, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.paint(style, msg))
}

func (r *Renderer) paint(style renderFn, text string) string {
	if !r.color || style == nil {
		return text
	}
	return style(text)
}

func stamp(at time.Time) string {
	return at.Local().Format("[15:04:05]")
}

// Sink feeds a bus subscription into a renderer on its own goroutine.
type Sink struct {
	stop func()
	done chan struct{}
}

// NewSink subscribes to bus and renders every event until Close is called
// or the bus shuts down.
func NewSink(bus *event.Bus[event.Event], r *Renderer) *Sink {
	ch, stop := bus.Subscribe()
	s := &Sink{stop: stop, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for ev := range ch {
			r.Handle(ev)
		}
	}()
	return s
}

// Close detaches from the bus and waits for already-queued events to render.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.stop()
	<-s.done
}
