package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultBufferSize = 500

// Logger writes level-gated key=value lines, keeps recent entries in a
// bounded buffer, and fans entries out to hub subscribers. Log output goes
// to stderr so stdout stays reserved for the conversation itself.
type Logger struct {
	buffer   *Buffer
	output   *log.Logger
	minLevel Level
	fields   map[string]string
	hub      *Hub
}

func New(minLevel Level) *Logger {
	return NewWithOutput(minLevel, os.Stderr)
}

func NewWithOutput(minLevel Level, output io.Writer) *Logger {
	if output == nil {
		output = io.Discard
	}
	return &Logger{
		buffer:   NewBuffer(DefaultBufferSize),
		output:   log.New(output, "", log.LstdFlags),
		minLevel: normalizeLevel(minLevel),
		hub:      NewHub(),
	}
}

func (l *Logger) Buffer() *Buffer {
	if l == nil {
		return nil
	}
	return l.buffer
}

func (l *Logger) Subscribe() (<-chan Entry, func()) {
	if l == nil || l.hub == nil {
		return nil, func() {}
	}
	return l.hub.Subscribe(0)
}

// With returns a logger that stamps the given fields on every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return l
	}
	return &Logger{
		buffer:   l.buffer,
		output:   l.output,
		minLevel: l.minLevel,
		fields:   mergeFields(l.fields, fields),
		hub:      l.hub,
	}
}

func (l *Logger) Component(name string) *Logger {
	return l.With(map[string]string{"component": name})
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.write(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.write(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.write(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.write(LevelError, message, fields)
}

func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return levelRank(level) >= levelRank(l.minLevel)
}

// Close releases hub subscribers. The logger stays usable for output.
func (l *Logger) Close() {
	if l == nil || l.hub == nil {
		return
	}
	l.hub.Close()
}

func (l *Logger) write(level Level, message string, fields map[string]string) {
	if l == nil || !l.Enabled(level) {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   mergeFields(l.fields, fields),
	}
	if l.buffer != nil {
		l.buffer.Add(entry)
	}
	if l.hub != nil {
		l.hub.Broadcast(entry)
	}
	if l.output != nil {
		l.output.Print(Format(entry))
	}
}

func normalizeLevel(level Level) Level {
	switch level {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return level
	default:
		return LevelInfo
	}
}

func levelRank(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	default:
		return "", false
	}
}

// AtLeast reports whether level meets the given floor; an empty floor
// admits everything.
func AtLeast(level, floor Level) bool {
	if floor == "" {
		return true
	}
	return levelRank(level) >= levelRank(floor)
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

// Format renders an entry as level=<lvl> msg=<quoted> plus sorted
// key=value context pairs.
func Format(entry Entry) string {
	var b strings.Builder
	b.WriteString("level=")
	b.WriteString(string(entry.Level))
	b.WriteString(" msg=")
	b.WriteString(strconv.Quote(entry.Message))

	if len(entry.Context) == 0 {
		return b.String()
	}
	keys := make([]string, 0, len(entry.Context))
	for key := range entry.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%s=%s", key, strconv.Quote(entry.Context[key])))
	}
	return b.String()
}
