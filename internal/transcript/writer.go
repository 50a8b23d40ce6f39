package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultFlushInterval  = time.Second
	defaultFlushThreshold = 4096
	defaultQueueSize      = 256
)

// WriterOptions tune the flush behavior; zero values get defaults.
type WriterOptions struct {
	FlushInterval  time.Duration
	FlushThreshold int
	QueueSize      int
}

// Writer appends messages to a transcript file off the conversation path.
// The queue never blocks the relay: when full, the oldest queued message is
// dropped and counted.
type Writer struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	writeCh   chan Message
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closed    uint32
	dropped   uint64
	closeErr  error
	interval  time.Duration
	threshold int
}

// NewWriter creates or truncates the transcript file and starts the flush
// loop.
func NewWriter(path string, opts WriterOptions) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	interval := opts.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	threshold := opts.FlushThreshold
	if threshold <= 0 {
		threshold = defaultFlushThreshold
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}

	w := &Writer{
		path:      path,
		file:      file,
		buf:       bufio.NewWriterSize(file, threshold),
		writeCh:   make(chan Message, queue),
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
		interval:  interval,
		threshold: threshold,
	}
	go w.run()
	return w, nil
}

func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Append queues a message. Safe to call after Close; the message is ignored.
func (w *Writer) Append(msg Message) {
	if w == nil {
		return
	}
	if atomic.LoadUint32(&w.closed) == 1 {
		return
	}
	select {
	case w.writeCh <- msg:
		return
	default:
	}
	select {
	case <-w.writeCh:
		atomic.AddUint64(&w.dropped, 1)
	default:
	}
	select {
	case w.writeCh <- msg:
	default:
		atomic.AddUint64(&w.dropped, 1)
	}
}

// Dropped counts messages lost to a full queue.
func (w *Writer) Dropped() uint64 {
	if w == nil {
		return 0
	}
	return atomic.LoadUint64(&w.dropped)
}

// Close drains the queue, flushes, and closes the file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		atomic.StoreUint32(&w.closed, 1)
		close(w.closeCh)
		<-w.done
	})
	return w.closeErr
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	pending := 0
	flush := func() {
		if pending == 0 {
			return
		}
		if err := w.buf.Flush(); err != nil && w.closeErr == nil {
			w.closeErr = err
		}
		pending = 0
	}

	write := func(msg Message) {
		payload, err := json.Marshal(msg)
		if err != nil {
			if w.closeErr == nil {
				w.closeErr = err
			}
			return
		}
		payload = append(payload, '\n')
		n, err := w.buf.Write(payload)
		if err != nil {
			if w.closeErr == nil {
				w.closeErr = err
			}
			return
		}
		pending += n
		if pending >= w.threshold {
			flush()
		}
	}

	for {
		select {
		case msg := <-w.writeCh:
			write(msg)
		case <-ticker.C:
			flush()
		case <-w.closeCh:
			for {
				select {
				case msg := <-w.writeCh:
					write(msg)
				default:
					flush()
					if err := w.file.Close(); err != nil && w.closeErr == nil {
						w.closeErr = err
					}
					return
				}
			}
		}
	}
}
