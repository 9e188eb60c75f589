package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/mcp"
	"github.com/Aman-CERP/docrag/internal/search"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval to MCP clients",
		Long: `Start a Model Context Protocol server exposing the 'retrieve' and
'index_status' tools. The stdio transport owns stdout, so all logging goes
to ~/.docrag/logs/server.log.`,
		Example: `  # Register with an MCP client
  docrag serve --docs-dir /path/to/docs --index-dir /path/to/index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, g, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")

	return cmd
}

func runServe(ctx context.Context, g *globalOptions, transport string) error {
	session, err := g.openRetrieval(true)
	if err != nil {
		return err
	}
	defer session.Close()

	indexDir := g.cfg.Paths.IndexDir
	server, err := mcp.NewServer(session.retriever, mcp.Options{
		DefaultK:        g.cfg.Search.TopK,
		DefaultStrategy: search.Strategy(g.cfg.Search.Strategy),
		EmbeddingModel:  session.embedder.ModelName(),
		Status: func(context.Context) (*index.Status, error) {
			return index.Inspect(indexDir)
		},
	})
	if err != nil {
		return err
	}
	return server.Serve(ctx, transport)
}
