package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/output"
)

func newStatusCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health",
		Long: `Display the indexed document and passage counts, how many passages
carry embeddings, when the index was last updated and its size on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := index.Inspect(g.cfg.Paths.IndexDir)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(st)
			}
			if !st.Built {
				out.Warningf("No index found in %s", st.IndexDir)
				out.Status("💡", "Run 'docrag init' to create one")
				return nil
			}

			semantic := "available"
			if !st.SemanticReady() {
				semantic = "unavailable (built with --skip-embeddings)"
			}
			out.KeyValue([][2]string{
				{"Index", st.IndexDir},
				{"Documents", fmt.Sprint(st.Documents)},
				{"Passages", fmt.Sprint(st.Chunks)},
				{"Embedded", fmt.Sprintf("%d/%d", st.EmbeddedChunks, st.Chunks)},
				{"Semantic", semantic},
				{"Last indexed", st.LastIndexed.Local().Format(time.RFC3339)},
				{"Lexical size", humanize.IBytes(uint64(st.LexicalBytes))},
				{"Vector size", humanize.IBytes(uint64(st.VectorBytes))},
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
