package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Event represents a file change detected by the watcher.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher reports changes to a fixed set of input files. It watches the
// parent directories, so a file that is removed and recreated is still seen.
type Watcher struct {
	fsw      *fsnotify.Watcher
	Events   chan Event
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
}

// New creates a Watcher for the given files.
func New(files []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		Events:   make(chan Event, 16),
		files:    make(map[string]struct{}, len(files)),
		debounce: debounce,
	}

	seen := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := fsw.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
			continue
		}
		w.dirs = append(w.dirs, dir)
	}

	return w, nil
}

// Start forwards one Event per settled burst of changes to a watched file.
// It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	var (
		pending *Event
		timer   *time.Timer
		fire    <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			pending = &Event{Path: ev.Name, Op: ev.Op}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if pending == nil {
				continue
			}
			select {
			case w.Events <- *pending:
			case <-ctx.Done():
				return
			}
			pending = nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Dirs returns the directories currently being watched.
func (w *Watcher) Dirs() []string {
	return w.dirs
}
