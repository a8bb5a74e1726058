// Package watch observes a vault's mail directories for changes so a caller
// can incrementally re-run bulk copy or emlx parsing without a full rescan
// (spec.md §1 "maintains it incrementally"). It never mutates canonical
// data itself; it only emits events a caller feeds back into the bulk-copy
// pipeline or the emlx parser. Modeled on the teacher's internal/live
// watcher loop: one goroutine per watched root, restart with exponential
// backoff on watcher failure.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwrekofc/swiftea/internal/logging"
)

// Kind classifies a filesystem change observed under a watched root.
type Kind string

const (
	KindNewMessage Kind = "new_message"
	KindModified   Kind = "modified"
	KindRemoved    Kind = "removed"
)

// Event is one observed filesystem change.
type Event struct {
	Kind Kind
	Path string
}

// Watcher watches a fixed set of directory roots and emits Events for
// changes under them, restarting its underlying fsnotify watcher with
// exponential backoff if it errors out.
type Watcher struct {
	roots          []string
	restartBackoff time.Duration
	maxBackoff     time.Duration
	logf           func(format string, args ...any)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithBackoff overrides the initial and max restart backoff.
func WithBackoff(initial, max time.Duration) Option {
	return func(w *Watcher) {
		w.restartBackoff = initial
		w.maxBackoff = max
	}
}

// WithLogf overrides the watcher's diagnostic logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(w *Watcher) {
		w.logf = logf
	}
}

// New constructs a Watcher over the given directory roots (typically a
// vault's Swiftea/Mail directory and the upstream Messages/ directory).
func New(roots []string, opts ...Option) *Watcher {
	log := logging.New("watch")
	w := &Watcher{
		roots:          roots,
		restartBackoff: 2 * time.Second,
		maxBackoff:     30 * time.Second,
		logf:           func(format string, args ...any) { log.Warn().Msgf(format, args...) },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch runs until ctx is cancelled, emitting events on the returned
// channel. The channel is closed once ctx is done and all internal
// goroutines have exited.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	if len(w.roots) == 0 {
		return nil, fmt.Errorf("watch: no roots configured")
	}

	events := make(chan Event, 64)
	done := make(chan struct{}, len(w.roots))

	for _, root := range w.roots {
		root := root
		go w.watchRoot(ctx, root, events, done)
	}

	go func() {
		for range w.roots {
			<-done
		}
		close(events)
	}()

	return events, nil
}

func (w *Watcher) watchRoot(ctx context.Context, root string, events chan<- Event, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	backoff := w.restartBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := w.runOnce(ctx, root, events)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			w.logf("watch: %s stopped: %v (restarting in %s)", root, err, backoff)
		} else {
			w.logf("watch: %s stopped (restarting in %s)", root, backoff)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff *= 2
		if backoff > w.maxBackoff {
			backoff = w.maxBackoff
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, root string, events chan<- Event) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher for %q: %w", root, err)
	}
	defer fsw.Close()

	if err := fsw.Add(root); err != nil {
		return fmt.Errorf("watching %q: %w", root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("fsnotify event channel closed for %q", root)
			}
			if kind, ok := classify(ev); ok {
				select {
				case events <- Event{Kind: kind, Path: ev.Name}:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("fsnotify error channel closed for %q", root)
			}
			return err
		}
	}
}

func classify(ev fsnotify.Event) (Kind, bool) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		return KindNewMessage, true
	case ev.Op&fsnotify.Write != 0:
		return KindModified, true
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return KindRemoved, true
	default:
		return "", false
	}
}
