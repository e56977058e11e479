// Package pause implements a file-driven breakpoint: while a sentinel file exists
// at the configured path, callers of Gate.Wait are held.
//
// The gate is a scheduling control for external harnesses, not a lock. Presence of
// the file is polled at a fixed interval; an fsnotify watch on the parent directory
// only shortens the wait after a delete.
package pause

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultPollInterval = 500 * time.Millisecond

// ErrInterrupted is matched by the error Wait returns when ctx is cancelled.
// The same error also matches ctx.Err().
var ErrInterrupted = errors.New("analysis pause interrupted")

type Gate struct {
	path     string
	interval time.Duration
	watch    bool
	logger   *slog.Logger
}

// New returns a gate for path. An empty path disables the gate.
func New(path string, interval time.Duration, logger *slog.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Gate{path: path, interval: interval, watch: true, logger: logger}
}

// WithoutWatcher disables the fsnotify wake-up; only polling is used.
func (g *Gate) WithoutWatcher() *Gate {
	g.watch = false
	return g
}

func (g *Gate) Enabled() bool {
	return g != nil && g.path != ""
}

func (g *Gate) Path() string {
	if g == nil {
		return ""
	}
	return g.path
}

// Wait blocks while the sentinel file exists. It returns nil immediately when the
// gate is disabled or the file is absent.
func (g *Gate) Wait(ctx context.Context) error {
	if !g.Enabled() || !exists(g.path) {
		return nil
	}

	g.logger.Info("analysis is paused, waiting for file to be deleted", slog.String("path", g.path))

	wake, stop := g.startWatcher()
	defer stop()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("analysis has been interrupted", slog.String("path", g.path))
			return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		case <-ticker.C:
		case <-wake:
		}

		if !exists(g.path) {
			g.logger.Info("analysis is resumed", slog.String("path", g.path))
			return nil
		}
	}
}

// startWatcher watches the sentinel's directory and signals on remove/rename of the
// sentinel. On any setup failure it returns a nil channel and polling alone applies.
func (g *Gate) startWatcher() (<-chan struct{}, func()) {
	noop := func() {}
	if !g.watch {
		return nil, noop
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		g.logger.Debug("pause watcher unavailable", slog.String("error", err.Error()))
		return nil, noop
	}
	if err := w.Add(filepath.Dir(g.path)); err != nil {
		w.Close()
		g.logger.Debug("pause watcher unavailable", slog.String("error", err.Error()))
		return nil, noop
	}

	target := filepath.Clean(g.path)
	wake := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return wake, func() {
		close(done)
		w.Close()
	}
}

// exists treats any stat error other than not-exist as present, so an unreadable
// sentinel keeps the gate closed.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
