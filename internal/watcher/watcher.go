package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher signals when files in a template directory change.
// Bursts of filesystem events collapse into a single pending signal.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
}

// New watches dir. A missing directory is not an error; the watcher then never fires.
func New(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create template watcher")
	}

	w := &Watcher{fsw: fsw, changes: make(chan string, 1)}

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "failed to watch %s", dir)
		}
	} else {
		log.Printf("Template directory %s not found, template watching disabled", dir)
	}

	return w, nil
}

// Changes delivers the name of a changed template file.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run forwards filesystem events until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.changes <- filepath.Base(ev.Name):
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Template watcher error: %v", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
