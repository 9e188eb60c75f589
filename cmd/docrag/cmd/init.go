package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/ui"
)

type initOptions struct {
	skipEmbeddings bool
	force          bool
	plain          bool
	noColor        bool
}

func newInitCmd(g *globalOptions) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build or refresh the index",
		Long: `Load the corpus, split it into passages and bring the index up to date.

Only passages whose content changed are rewritten in the lexical index, and
embeddings are reused for passages whose text is unchanged. Re-running init
over an unchanged corpus writes nothing.`,
		Example: `  docrag init
  docrag init --docs-dir ./handbook --skip-embeddings
  docrag init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := runInit(cmd.Context(), cmd, g, opts)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.skipEmbeddings, "skip-embeddings", false, "Build only the lexical index")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Remove the existing index before indexing")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts initOptions) (*index.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var embedder embed.Embedder
	if !opts.skipEmbeddings {
		var err error
		if embedder, err = g.newEmbedder(); err != nil {
			return nil, err
		}
		defer func() { _ = embedder.Close() }()
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
		ui.WithDocsDir(g.cfg.Paths.DocsDir)))

	pipeline := index.NewPipeline(index.Dependencies{Embedder: embedder, Renderer: renderer})
	return pipeline.Run(ctx, g.indexOptions(opts.skipEmbeddings, opts.force))
}

func (g *globalOptions) indexOptions(skipEmbeddings, force bool) index.Options {
	return index.Options{
		DocsDir:        g.cfg.Paths.DocsDir,
		IndexDir:       g.cfg.Paths.IndexDir,
		ChunkSize:      g.cfg.Chunking.Size,
		ChunkOverlap:   g.cfg.Chunking.Overlap,
		SkipEmbeddings: skipEmbeddings,
		Force:          force,
		EmbedBatchSize: g.cfg.Embeddings.BatchSize,
	}
}
