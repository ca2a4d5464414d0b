// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs a callback when Apex sources change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/apexlint/services/lint/glob"
)

// Op is the kind of change seen for a file.
type Op int

const (
	// OpCreate indicates a file was created.
	OpCreate Op = iota

	// OpWrite indicates a file was modified.
	OpWrite

	// OpRemove indicates a file was deleted.
	OpRemove

	// OpRename indicates a file was renamed.
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file system change.
type Change struct {
	// Path is the changed file as reported by the OS.
	Path string

	// Op is the type of change.
	Op Op

	// Time is when the change was detected.
	Time time.Time
}

// Handler is called with each debounced batch of changes. Calls never
// overlap.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more changes before calling the
	// handler. Default: 200ms.
	Debounce time.Duration

	// MinInterval is the minimum time between two handler calls.
	// Zero means no limit.
	MinInterval time.Duration

	// Patterns selects the files whose changes trigger the handler and
	// the directories that are skipped. Default: glob defaults.
	Patterns *glob.Matcher

	// BufferSize is the size of the change buffer channel. Default: 1000.
	BufferSize int

	// Logger receives watch errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:    200 * time.Millisecond,
		MinInterval: time.Second,
		Patterns:    glob.MustNew(glob.DefaultIncludes, glob.DefaultExcludes),
		BufferSize:  1000,
		Logger:      slog.Default(),
	}
}

// Watcher watches roots for changes with debouncing.
//
// # Description
//
// Directory roots are watched recursively; file roots are watched through
// their parent directory. Changes are collected until the debounce window
// passes without a new one, de-duplicated by path and handed to the
// handler. A rate limiter spaces out handler calls during long bursts
// such as a branch checkout.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	roots   []string
	files   map[string]bool
	watcher *fsnotify.Watcher
	handler Handler
	opts    Options
	limiter *rate.Limiter

	changes  chan Change
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// New creates a watcher. Call Start to begin watching.
func New(roots []string, handler Handler, opts Options) (*Watcher, error) {
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.Patterns == nil {
		opts.Patterns = defaults.Patterns
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Watcher{
		roots:   roots,
		files:   make(map[string]bool),
		watcher: watcher,
		handler: handler,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		changes: make(chan Change, opts.BufferSize),
	}, nil
}

// Start begins watching for file changes.
//
// # Inputs
//
//   - ctx: When canceled, watching stops.
//
// # Outputs
//
//   - error: Non-nil if a root does not exist or cannot be watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addRoot(root); err != nil {
			w.Stop()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutines.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		_ = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *Watcher) addRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if info.IsDir() {
		return w.addRecursive(root)
	}

	w.mu.Lock()
	w.files[filepath.Clean(root)] = true
	w.mu.Unlock()
	if err := w.watcher.Add(filepath.Dir(root)); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	return nil
}

// addRecursive adds a directory and all subdirectories to the watch list.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.opts.Patterns.Excluded(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant returns true if a change to path should trigger the handler.
func (w *Watcher) relevant(path string) bool {
	w.mu.RLock()
	explicit := w.files[filepath.Clean(path)]
	w.mu.RUnlock()
	return explicit || w.opts.Patterns.Match(path)
}

// processEvents converts fsnotify events to changes.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.opts.Patterns.Excluded(event.Name) {
						if err := w.addRecursive(event.Name); err != nil {
							w.opts.Logger.Warn("watch new directory", "path", event.Name, "error", err)
						}
					}
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}

			select {
			case w.changes <- Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}:
			default:
				w.opts.Logger.Warn("change buffer full, dropping event", "path", event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("watch error", "error", err)
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// debounceLoop batches changes and calls the handler once the debounce
// window expires.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			if w.handler != nil {
				w.handler(ctx, dedupe(batch))
			}
			batch = nil
		}
	}
}

// dedupe keeps the most recent change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int)
	result := make([]Change, 0, len(changes))

	for _, change := range changes {
		if idx, exists := seen[change.Path]; exists {
			result[idx] = change
		} else {
			seen[change.Path] = len(result)
			result = append(result, change)
		}
	}
	return result
}
