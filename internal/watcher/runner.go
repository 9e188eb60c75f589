package watcher

import (
	"context"
	"log/slog"
	"time"
)

// ReindexFunc is called with each debounced batch of changes.
type ReindexFunc func(ctx context.Context, batch []FileEvent) error

// Run watches root and calls reindex for every batch until ctx is cancelled.
// A failed reindex is logged and watching continues, so a transient failure
// such as a held index lock is retried on the next change.
func Run(ctx context.Context, root string, opts Options, reindex ReindexFunc) error {
	w := New(opts)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, root) }()

	slog.Info("watch_started", slog.String("root", root), slog.String("mode", w.Mode()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			return err
		case err, ok := <-w.Errors():
			if ok {
				slog.Warn("watch_error", slog.String("error", err.Error()))
			}
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			start := time.Now()
			slog.Info("watch_batch", slog.Int("events", len(batch)))
			if err := reindex(ctx, batch); err != nil {
				slog.Error("watch_reindex_failed", slog.String("error", err.Error()))
				continue
			}
			slog.Info("watch_reindex_complete", slog.Duration("duration", time.Since(start)))
		}
	}
}
