package integration

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/watcher"
)

func TestWatcher_ReindexesOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed corpus watched with polling
	c := newCorpus(t)
	seed(t, c)
	c.build(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var runs atomic.Int32
	done := make(chan struct{}, 1)
	reindex := func(ctx context.Context, batch []watcher.FileEvent) error {
		if _, err := c.pipeline.Run(ctx, c.options(true)); err != nil {
			return err
		}
		runs.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}

	opts := watcher.Options{
		DebounceWindow: 100 * time.Millisecond,
		PollInterval:   100 * time.Millisecond,
		ForcePolling:   true,
	}.WithDefaults()

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(ctx, c.docs, opts, reindex) }()

	// Let the poller take its first snapshot.
	time.Sleep(300 * time.Millisecond)

	// When: a new document appears
	c.write(t, "release-notes.md", "# Release notes\n\nVersion two adds quarantine handling for documents that fail to parse during indexing.")

	// Then: the watcher triggers a reindex
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for reindex")
	}
	cancel()
	require.NoError(t, <-errCh)
	assert.GreaterOrEqual(t, runs.Load(), int32(1))

	// And: the new document is retrievable
	r := c.open(t)
	resp := retrieve(t, r, "quarantine", search.StrategyBM25)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "release-notes.md", sources(resp.Results)[0])
}
