package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/watcher"
)

type watchOptions struct {
	skipEmbeddings bool
	polling        bool
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-index the corpus whenever it changes",
		Long: `Index the corpus once, then watch it and re-run incremental indexing
after each burst of changes settles. Hidden files and the index directory
are ignored. Falls back to polling where file notifications are unavailable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipEmbeddings, "skip-embeddings", false, "Maintain only the lexical index")
	cmd.Flags().BoolVar(&opts.polling, "poll", false, "Poll for changes instead of using file notifications")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts watchOptions) error {
	out := output.New(cmd.OutOrStdout())

	debounce, err := g.cfg.WatchDebounce()
	if err != nil {
		return err
	}
	if _, err := os.Stat(g.cfg.Paths.DocsDir); err != nil {
		return fmt.Errorf("cannot watch %s: %w", g.cfg.Paths.DocsDir, err)
	}

	var embedder embed.Embedder
	if !opts.skipEmbeddings {
		if embedder, err = g.newEmbedder(); err != nil {
			return err
		}
		defer func() { _ = embedder.Close() }()
	}
	pipeline := index.NewPipeline(index.Dependencies{Embedder: embedder})
	indexOpts := g.indexOptions(opts.skipEmbeddings, false)

	reindex := func(ctx context.Context, batch []watcher.FileEvent) error {
		report, err := pipeline.Run(ctx, indexOpts)
		if err != nil {
			return err
		}
		out.Successf("%d changed files: %d new, %d modified, %d removed passages",
			len(batch), report.New, report.Modified, report.Removed)
		return nil
	}

	if err := reindex(ctx, nil); err != nil {
		return err
	}

	out.Statusf("👀", "Watching %s (Ctrl+C to stop)", g.cfg.Paths.DocsDir)

	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = debounce
	wopts.ForcePolling = opts.polling
	wopts.IgnoreDirs = []string{g.absIndexDir()}

	err = watcher.Run(ctx, g.cfg.Paths.DocsDir, wopts, reindex)
	slog.Info("watch_stopped")
	return err
}
