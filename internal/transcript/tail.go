package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
)

// Tail reads a transcript incrementally. Each Next call returns the messages
// appended since the previous call; a partially written last line stays
// pending until its newline arrives.
type Tail struct {
	file    *os.File
	offset  int64
	skipped uint64
}

func OpenTail(path string) (*Tail, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	return &Tail{file: file}, nil
}

// Next returns newly appended messages, oldest first. A truncated file
// restarts the tail from the beginning.
func (t *Tail) Next() ([]Message, error) {
	info, err := t.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	size := info.Size()
	if size < t.offset {
		t.offset = 0
	}
	if size == t.offset {
		return nil, nil
	}

	buf := make([]byte, size-t.offset)
	n, err := t.file.ReadAt(buf, t.offset)
	if n == 0 && err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	data := buf[:n]

	var out []Message
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := data[:idx]
		data = data[idx+1:]
		t.offset += int64(idx) + 1

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			atomic.AddUint64(&t.skipped, 1)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Skipped counts lines that failed to decode.
func (t *Tail) Skipped() uint64 {
	return atomic.LoadUint64(&t.skipped)
}

func (t *Tail) Close() error {
	return t.file.Close()
}
