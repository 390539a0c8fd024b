// Package watcher emits add/change/remove events under a project root
// (component E). It debounces bursts of fsnotify events for the same path
// internally so noisy editors ("save all") don't flood the controller with
// duplicate notifications; the controller performs its own, separately
// specified debounce on top of whatever this package emits.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/hotwatch/internal/interfaces"
	"github.com/conneroisu/hotwatch/internal/types"
)

// MaxPendingEvents bounds the debouncer's pending buffer before it starts
// evicting the oldest quarter, protecting against unbounded growth when a
// burst vastly outpaces the flush timer.
const MaxPendingEvents = 1000

var eventBatchPool = sync.Pool{
	New: func() interface{} { return make([]rawEvent, 0, 64) },
}

// Filter decides whether a path is interesting enough to forward.
type Filter func(path string) bool

// FileWatcher is a fsnotify-backed implementation of interfaces.Watcher.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	filters   []Filter

	mu      sync.RWMutex
	stopped bool
}

var _ interfaces.Watcher = (*FileWatcher)(nil)

type rawEvent struct {
	kind types.WatcherEventKind
	path string
}

// debouncer batches rawEvents arriving within delay of each other,
// deduplicating by path (last event wins), and cancels/rearms its timer on
// every new arrival so only the final burst actually flushes.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending []rawEvent
	timer   *time.Timer
	onFlush func([]rawEvent)
}

func newDebouncer(delay time.Duration, onFlush func([]rawEvent)) *debouncer {
	return &debouncer{delay: delay, onFlush: onFlush}
}

func (d *debouncer) add(e rawEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) >= MaxPendingEvents {
		evict := MaxPendingEvents / 4
		copy(d.pending, d.pending[evict:])
		d.pending = d.pending[:len(d.pending)-evict]
	}
	d.pending = append(d.pending, e)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	byPath := make(map[string]rawEvent, len(d.pending))
	for _, e := range d.pending {
		byPath[e.path] = e
	}
	batch := eventBatchPool.Get().([]rawEvent)[:0]
	for _, e := range byPath {
		batch = append(batch, e)
	}
	d.pending = d.pending[:0]
	onFlush := d.onFlush
	d.mu.Unlock()

	onFlush(batch)
	eventBatchPool.Put(batch)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// New builds a FileWatcher with the given noise filters (e.g. NoGitFilter,
// NoVendorFilter). debounceDelay is not used: Start always debounces with
// a fixed 10ms window.
func New(debounceDelay time.Duration, filters ...Filter) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &FileWatcher{watcher: w, filters: filters}, nil
}

// Start implements interfaces.Watcher. It walks root recursively, adding
// every directory to the underlying fsnotify watch set, then begins
// forwarding debounced events to onEvent until ctx is cancelled or Stop is
// called.
func (fw *FileWatcher) Start(ctx context.Context, root string, onEvent interfaces.WatcherCallback, onFatal func(error)) error {
	if err := fw.addRecursive(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	fw.debouncer = newDebouncer(10*time.Millisecond, func(batch []rawEvent) {
		for _, e := range batch {
			onEvent(e.kind, e.path)
		}
	})

	go fw.loop(ctx, onFatal)
	return nil
}

func (fw *FileWatcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".git") || info.Name() == "node_modules" {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

func (fw *FileWatcher) loop(ctx context.Context, onFatal func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(ev)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: non-fatal error: %v", err)
			if isFatalWatcherError(err) {
				onFatal(err)
				return
			}
		}
	}
}

// isFatalWatcherError reports whether err should end the run (§4.E), as
// opposed to a transient error the loop can keep running past.
func isFatalWatcherError(err error) bool {
	return strings.Contains(err.Error(), "too many open files")
}

func (fw *FileWatcher) handle(ev fsnotify.Event) {
	for _, f := range fw.filters {
		if !f(ev.Name) {
			return
		}
	}

	var kind types.WatcherEventKind
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		kind = types.WatcherAdded
	case ev.Op&fsnotify.Remove == fsnotify.Remove, ev.Op&fsnotify.Rename == fsnotify.Rename:
		kind = types.WatcherRemoved
	case ev.Op&fsnotify.Write == fsnotify.Write:
		kind = types.WatcherChanged
	default:
		return
	}

	if kind == types.WatcherAdded {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = fw.watcher.Add(ev.Name)
		}
	}

	fw.debouncer.add(rawEvent{kind: kind, path: ev.Name})
}

// Stop implements interfaces.Watcher.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return nil
	}
	fw.stopped = true
	if fw.debouncer != nil {
		fw.debouncer.stop()
	}
	return fw.watcher.Close()
}

// NoGitFilter excludes paths under a .git directory.
func NoGitFilter(path string) bool {
	return !strings.Contains(path, string(filepath.Separator)+".git"+string(filepath.Separator))
}

// NoVendorFilter excludes paths under a vendor directory.
func NoVendorFilter(path string) bool {
	return !strings.Contains(path, string(filepath.Separator)+"vendor"+string(filepath.Separator))
}
