package watcher

import (
	"errors"
	"fmt"

	"duet/internal/logging"
	"duet/internal/persona"
)

// ReloadQueue accepts a validated persona pair for a between-turns swap.
type ReloadQueue interface {
	QueueReload(personas [2]persona.Persona, path string)
}

// ReloadOptions wires a PersonaReloader.
type ReloadOptions struct {
	Path   string
	Base   persona.Config // running configuration the file overlays
	Names  [2]string      // persona names in agent order, opener first
	Queue  ReloadQueue
	Logger *logging.Logger
}

// PersonaReloader re-reads a persona file when it changes and queues the
// validated pair. Bad writes are logged and ignored. The running cast is
// fixed: the file may change voices, labels, and colors, not names.
type PersonaReloader struct {
	path   string
	base   persona.Config
	names  [2]string
	queue  ReloadQueue
	log    *logging.Logger
	handle Handle
}

// WatchPersonas starts following a persona file.
func WatchPersonas(watch Watch, options ReloadOptions) (*PersonaReloader, error) {
	if options.Path == "" {
		return nil, errors.New("persona file path is required")
	}
	if options.Queue == nil {
		return nil, errors.New("reload queue is required")
	}
	if options.Names[0] == "" || options.Names[1] == "" {
		return nil, errors.New("two persona names are required")
	}

	reloader := &PersonaReloader{
		path:  options.Path,
		base:  options.Base,
		names: options.Names,
		queue: options.Queue,
		log:   options.Logger.Component("reload"),
	}
	handle, err := WatchFile(watch, options.Path, reloader.onChange)
	if err != nil {
		return nil, err
	}
	reloader.handle = handle
	return reloader, nil
}

// Close stops following the file.
func (reloader *PersonaReloader) Close() error {
	if reloader == nil || reloader.handle == nil {
		return nil
	}
	return reloader.handle.Close()
}

func (reloader *PersonaReloader) onChange(Event) {
	pair, err := reloader.load()
	if err != nil {
		reloader.log.Warn("persona reload rejected", map[string]string{
			"path":  reloader.path,
			"error": err.Error(),
		})
		return
	}
	reloader.queue.QueueReload(pair, reloader.path)
	reloader.log.Info("persona reload queued", map[string]string{
		"path": reloader.path,
	})
}

func (reloader *PersonaReloader) load() ([2]persona.Persona, error) {
	overlay, err := persona.ParseFile(reloader.path)
	if err != nil {
		return [2]persona.Persona{}, err
	}
	cfg := reloader.base.Merge(overlay)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return [2]persona.Persona{}, err
	}
	return alignPersonas(cfg.Personas, reloader.names)
}

// alignPersonas orders the parsed personas to the running agent order. A
// file that drops or renames a persona is rejected; changing the cast
// takes a restart.
func alignPersonas(parsed []persona.Persona, names [2]string) ([2]persona.Persona, error) {
	var pair [2]persona.Persona
	for i, name := range names {
		found := false
		for _, p := range parsed {
			if p.Name == name {
				pair[i] = p
				found = true
				break
			}
		}
		if !found {
			return pair, fmt.Errorf("persona %q is running but missing from the file", name)
		}
	}
	return pair, nil
}
