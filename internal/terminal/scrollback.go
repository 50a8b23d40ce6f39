package terminal

import (
	"strings"
	"sync"

	"duet/internal/buffer"
)

const DefaultScrollbackLines = 1000

// Scrollback keeps the last N complete lines of a stream plus the partial
// line still being written. A carriage return restarts the current line, so
// spinner redraws collapse to their final text.
type Scrollback struct {
	mu    sync.Mutex
	lines *buffer.Ring[string]
	carry string
}

func NewScrollback(maxLines int) *Scrollback {
	if maxLines <= 0 {
		maxLines = DefaultScrollbackLines
	}
	return &Scrollback{lines: buffer.NewRing[string](maxLines)}
}

func (s *Scrollback) Append(data []byte) {
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunk := s.carry + string(data)
	parts := strings.Split(chunk, "\n")
	s.carry = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		s.lines.Add(afterLastCR(line))
	}
}

// Lines returns the buffered lines oldest first, with the partial line last.
// The REPL prompt has no trailing newline, so the partial line is usually
// the one callers care about.
func (s *Scrollback) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.lines.List()
	if lines == nil {
		lines = []string{}
	}
	if s.carry != "" {
		lines = append(lines, afterLastCR(s.carry))
	}
	return lines
}

func afterLastCR(line string) string {
	// A trailing \r is just a CRLF ending, not a redraw.
	line = strings.TrimSuffix(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		return line[i+1:]
	}
	return line
}
