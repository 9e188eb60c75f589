package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// Poller detects changes by rescanning the tree on an interval. It is the
// fallback for file systems where fsnotify does not work, such as network mounts.
type Poller struct {
	interval time.Duration
	accept   func(rel string, isDir bool) bool

	mu      sync.Mutex
	files   map[string]fileSnapshot
	events  chan FileEvent
	stopCh  chan struct{}
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPoller creates a poller. accept filters paths relative to the root.
func NewPoller(interval time.Duration, accept func(rel string, isDir bool) bool) *Poller {
	return &Poller{
		interval: interval,
		accept:   accept,
		files:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		stopCh:   make(chan struct{}),
	}
}

// Events returns detected changes. It is closed by Stop.
func (p *Poller) Events() <-chan FileEvent { return p.events }

// Start takes a baseline of root and then polls until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context, root string) error {
	baseline, err := p.snapshot(root)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	p.mu.Lock()
	p.files = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detect(root); err != nil {
				slog.Warn("poll_scan_failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Poller) snapshot(root string) (map[string]fileSnapshot, error) {
	files := make(map[string]fileSnapshot)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if !p.accept(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[filepath.ToSlash(rel)] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return files, err
}

func (p *Poller) detect(root string) error {
	current, err := p.snapshot(root)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for path, snap := range current {
		prev, ok := p.files[path]
		switch {
		case !ok:
			p.emit(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emit(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.files {
		if _, ok := current[path]; !ok {
			p.emit(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	p.files = current
	return nil
}

// emit must be called with p.mu held.
func (p *Poller) emit(ev FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- ev:
	default:
		slog.Warn("poll_event_dropped", slog.String("path", ev.Path), slog.String("op", ev.Operation.String()))
	}
}

// Stop ends polling and closes Events. Safe to call twice.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
}
