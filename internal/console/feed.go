package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"duet/internal/transcript"
)

// FeedOptions tune the transcript view.
type FeedOptions struct {
	// Width is the wrap and alignment column. Zero means DefaultWidth,
	// negative disables wrapping.
	Width int
	// Color enables ANSI styling.
	Color bool
	// Focus names the agent whose messages render right-aligned, like
	// the sent side of a phone conversation.
	Focus string
}

// Feed renders transcript messages. Unlike Renderer it works from
// persisted messages rather than live events, so persona colors are
// assigned by order of first appearance.
type Feed struct {
	mu     sync.Mutex
	out    io.Writer
	width  int
	color  bool
	focus  string
	align  lipgloss.Style
	labels map[string]renderFn
	bodies map[string]renderFn
}

// NewFeed builds a transcript view writing to out.
func NewFeed(out io.Writer, opts FeedOptions) *Feed {
	width := opts.Width
	if width == 0 {
		width = DefaultWidth
	}
	f := &Feed{
		out:    out,
		width:  width,
		color:  opts.Color,
		focus:  opts.Focus,
		labels: make(map[string]renderFn),
		bodies: make(map[string]renderFn),
	}
	if width > 0 {
		f.align = lipgloss.NewStyle().Width(width).Align(lipgloss.Right)
	}
	return f
}

// Print renders one message.
func (f *Feed) Print(msg transcript.Message) {
	label := msg.Label
	if label == "" {
		label = msg.Agent
	}
	body := msg.Text
	if f.width > 0 {
		body = wordwrap.String(body, f.width)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	labelFn, bodyFn := f.stylesFor(msg.Agent)
	block := fmt.Sprintf("%s %s\n%s",
		f.paint(timestampStyle, stamp(msg.At)),
		f.paint(labelFn, label+" ➤"),
		f.paint(bodyFn, body))
	if f.focus != "" && msg.Agent == f.focus && f.width > 0 {
		block = f.align.Render(block)
	}
	fmt.Fprintf(f.out, "%s\n\n", block)
}

// Notef prints an untimestamped status line in the muted color.
func (f *Feed) Notef(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(f.out, f.paint(noteStyle, fmt.Sprintf(format, args...)))
}

// stylesFor hands out colors in slot order as agents first appear.
// Callers hold the mutex.
func (f *Feed) stylesFor(agent string) (renderFn, renderFn) {
	if fn, ok := f.labels[agent]; ok {
		return fn, f.bodies[agent]
	}
	color := personaColor("", len(f.labels))
	f.labels[agent] = labelStyle(color)
	f.bodies[agent] = textStyle(color)
	return f.labels[agent], f.bodies[agent]
}

func (f *Feed) paint(style renderFn, text string) string {
	if !f.color || style == nil {
		return text
	}
	return style(text)
}
