package cmd

import (
	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/preflight"
)

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(g *globalOptions) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run diagnostics to ensure docrag can index and query.

Checks:
  - Docs directory exists and holds .md, .txt or .html files
  - Index directory is writable with at least 100 MB free
  - Embedding provider is usable (API key for openai)
  - Existing index state

Embedding and index problems are warnings: 'docrag init --skip-embeddings'
and 'docrag query --strategy bm25' still work without them.`,
		Example: `  docrag doctor
  docrag doctor --verbose
  docrag doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			)
			results := checker.RunAll(cmd.Context(), preflight.Target{
				DocsDir:            g.cfg.Paths.DocsDir,
				IndexDir:           g.cfg.Paths.IndexDir,
				EmbeddingsProvider: g.cfg.Embeddings.Provider,
				EmbeddingsHost:     g.cfg.Embeddings.Host,
				APIKey:             g.apiKey(),
			})

			if jsonOutput {
				report := doctorReport{Status: checker.SummaryStatus(results), Checks: results}
				if err := output.New(cmd.OutOrStdout()).JSON(report); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return docerrors.New(docerrors.ErrCodeConfigInvalid, "system check failed", nil).
					WithSuggestion("fix the errors listed above and run 'docrag doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
