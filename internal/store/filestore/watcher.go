package filestore

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/stacklok/record-sync/internal/store"
)

// watcher translates fsnotify events on the records directory into change
// batches.
type watcher struct {
	fs    *fsnotify.Watcher
	table string
	emit  func(store.ChangeBatch)
	done  chan struct{}
	wg    sync.WaitGroup
}

func newWatcher(dir, table string, emit func(store.ChangeBatch)) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch records directory %s: %w", dir, err)
	}

	w := &watcher{
		fs:    fsw,
		table: table,
		emit:  emit,
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

func (w *watcher) stop() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if batch, ok := w.convertEvent(event); ok {
				w.emit(batch)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("File store watcher error", "table", w.table, "error", err)
		}
	}
}

// convertEvent maps an event on <id>.json to the keys the memory store would
// report for the same write. Temporary files and chmod events are ignored.
func (w *watcher) convertEvent(event fsnotify.Event) (store.ChangeBatch, bool) {
	name := filepath.Base(event.Name)
	id, ok := strings.CutSuffix(name, recordExt)
	if !ok || id == "" {
		return store.ChangeBatch{}, false
	}

	keys := []string{store.RecordKey(w.table, id)}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		keys = append(keys, store.IndexKey(w.table))
	case event.Has(fsnotify.Write):
	default:
		return store.ChangeBatch{}, false
	}
	return store.ChangeBatch{Area: store.AreaLocal, Keys: keys}, true
}
