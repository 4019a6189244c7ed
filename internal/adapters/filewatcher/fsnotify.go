// Package filewatcher provides file system monitoring adapters.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/workspace-rag/internal/domain/ports"
	"github.com/0xcro3dile/workspace-rag/internal/logging"
)

// DefaultExtensions are watched when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".markdown", ".csv", ".pdf"}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool
}

// NewFSNotifyWatcher creates a watcher that reports files with the given
// extensions. Matching is case-insensitive.
func NewFSNotifyWatcher(extensions []string) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	return &FSNotifyWatcher{watcher: w, extensions: exts}, nil
}

// Watch starts monitoring dir. The channel closes when ctx is done or the
// watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}
	logging.Debug("fsnotify: added %s", dir)

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				op, ok := translate(event.Op)
				if !ok {
					continue
				}
				logging.Debug("File %s: %s", op, event.Name)

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("File watcher error: %v", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// translate maps an fsnotify op to a file operation. A rename reports the
// old name, so it counts as a deletion.
func translate(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
