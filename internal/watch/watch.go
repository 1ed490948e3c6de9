// Package watch re-extracts file documents when they change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"chatmate.app/chatmate/internal/core"
	"chatmate.app/chatmate/internal/logger"
	"chatmate.app/chatmate/internal/store"
)

const DefaultDebounce = 250 * time.Millisecond

// Refresher is the part of the chunk service a watcher drives.
type Refresher interface {
	Refresh(ctx context.Context, roomName string, documentIDs []string, del bool) (*core.RefreshResult, error)
}

var _ Refresher = (*core.ChunkService)(nil)

type Watcher struct {
	room      string
	refresher Refresher
	debounce  time.Duration
	paths     map[string]string // cleaned absolute path -> document id
	fsw       *fsnotify.Watcher
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// New watches the directories holding the room's file documents. Documents of
// other kinds are ignored.
func New(room string, docs []store.Document, r Refresher, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		room:      room,
		refresher: r,
		debounce:  DefaultDebounce,
		paths:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]struct{})
	for _, d := range docs {
		if d.Kind != store.DocumentKindFile {
			continue
		}
		path, err := filepath.Abs(d.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", d.Location, err)
		}
		path = filepath.Clean(path)
		w.paths[path] = d.ID
		dirs[filepath.Dir(path)] = struct{}{}
	}
	if len(w.paths) == 0 {
		return nil, fmt.Errorf("%w: room %s has no file documents to watch", core.ErrInvalidInput, room)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Debugf("Watching %s for room %s", dir, room)
	}
	w.fsw = fsw
	return w, nil
}

// Paths returns how many document paths are being watched.
func (w *Watcher) Paths() int { return len(w.paths) }

// documentFor returns the id of the document an event should refresh, or "".
func (w *Watcher) documentFor(ev fsnotify.Event) string {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return ""
	}
	return w.paths[filepath.Clean(ev.Name)]
}

// Run dispatches refreshes until ctx is cancelled or the watcher fails. Events
// for the same document within the debounce window collapse into one refresh.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			id := w.documentFor(ev)
			if id == "" {
				continue
			}
			logger.Debugf("Room %s: %s changed (%s)", w.room, ev.Name, ev.Op)
			pending[id] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		case <-timer.C:
			w.flush(ctx, pending)
			clear(pending)
		}
	}
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	for id := range pending {
		result, err := w.refresher.Refresh(ctx, w.room, []string{id}, false)
		if err != nil {
			logger.Warnf("Room %s: refresh of %s failed: %v", w.room, id, err)
			continue
		}
		logger.Infof("Room %s: refreshed %s (%d chunk(s))", w.room, id, result.Chunks)
	}
}
