package watcher

import (
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchFile watches a single file through its parent directory. Editors
// that save by writing a temp file and renaming it over the target break
// a direct file watch; the directory watch survives the swap. The file
// itself does not have to exist yet, only its directory. Pure metadata
// changes are filtered out.
func WatchFile(watch Watch, path string, callback func(Event)) (Handle, error) {
	if watch == nil {
		return nil, errors.New("watcher is nil")
	}
	if path == "" {
		return nil, errors.New("path is required")
	}
	if callback == nil {
		return nil, errors.New("callback is required")
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	return watch.Watch(filepath.Dir(target), func(event Event) {
		name, err := filepath.Abs(event.Path)
		if err != nil || name != target {
			return
		}
		if !changesContent(event.Op) {
			return
		}
		callback(event)
	})
}

func changesContent(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Create) ||
		op.Has(fsnotify.Rename) ||
		op.Has(fsnotify.Remove)
}
