// Package watcher delivers debounced filesystem events. Callers should
// treat delivery as best effort: bursts are coalesced, so callbacks
// trigger a re-read of the changed file rather than carry its content.
package watcher

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"duet/internal/logging"
)

const (
	defaultDebounce    = 100 * time.Millisecond
	defaultMaxWatches  = 16
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

var ErrMaxWatchesExceeded = errors.New("max watches exceeded")

// Event is a single coalesced filesystem change. Op unions every op seen
// in the debounce window; Timestamp is the newest.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Handle releases one registration.
type Handle interface {
	Close() error
}

// Watch registers a callback for filesystem events on a path. Watching a
// directory delivers events for its direct children.
type Watch interface {
	Watch(path string, callback func(Event)) (Handle, error)
}

// Options controls watcher behavior.
type Options struct {
	Logger       *logging.Logger
	Debounce     time.Duration
	MaxWatches   int
	ErrorHandler func(error) // called when the watcher cannot recover
}

// Watcher is the fsnotify-backed implementation.
type Watcher struct {
	mutex         sync.Mutex
	source        *fsnotify.Watcher
	callbacks     map[string][]callbackEntry
	debouncer     *debouncer
	activeWatches int
	maxWatches    int
	nextID        uint64
	closed        bool

	events chan fsnotify.Event
	errors chan error
	done   chan struct{}

	restartMutex    sync.Mutex
	restartTimer    *time.Timer
	restartAttempts int
	errorHandler    func(error)

	log *logging.Logger
}

// New creates a Watcher with default options.
func New() (*Watcher, error) {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Watcher with custom options.
func NewWithOptions(options Options) (*Watcher, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	maxWatches := options.MaxWatches
	if maxWatches <= 0 {
		maxWatches = defaultMaxWatches
	}

	watcher := &Watcher{
		source:       source,
		callbacks:    make(map[string][]callbackEntry),
		debouncer:    newDebouncer(debounce),
		maxWatches:   maxWatches,
		events:       make(chan fsnotify.Event, 16),
		errors:       make(chan error, 4),
		done:         make(chan struct{}),
		errorHandler: options.ErrorHandler,
		log:          options.Logger.Component("watcher"),
	}

	watcher.startForwarder(source)
	go watcher.run()
	return watcher, nil
}

// Close shuts down the watcher and stops event processing.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	if watcher.debouncer != nil {
		watcher.debouncer.stop()
		watcher.debouncer = nil
	}
	source := watcher.source
	watcher.mutex.Unlock()

	watcher.restartMutex.Lock()
	if watcher.restartTimer != nil {
		watcher.restartTimer.Stop()
		watcher.restartTimer = nil
	}
	watcher.restartMutex.Unlock()

	close(watcher.done)
	if source == nil {
		return nil
	}
	return source.Close()
}

func (watcher *Watcher) run() {
	for {
		select {
		case event := <-watcher.events:
			watcher.handleEvent(event)
		case err := <-watcher.errors:
			watcher.handleError(err)
		case <-watcher.done:
			return
		}
	}
}

// startForwarder decouples fsnotify's channels from event handling, so a
// slow callback never blocks the kernel queue drain.
func (watcher *Watcher) startForwarder(source *fsnotify.Watcher) {
	if source == nil {
		return
	}

	go func() {
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				select {
				case watcher.events <- event:
				case <-watcher.done:
					return
				}
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				select {
				case watcher.errors <- err:
				case <-watcher.done:
					return
				}
			case <-watcher.done:
				return
			}
		}
	}()
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil {
		return
	}
	watcher.log.Warn(message, fields)
}

func (watcher *Watcher) logDebug(message, path string, activeCount int) {
	if watcher == nil {
		return
	}
	watcher.log.Debug(message, map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(activeCount),
	})
}
