package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/generate"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/ui"
)

type queryOptions struct {
	strategy   string
	alpha      float64
	noGenerate bool
	jsonOutput bool
	explain    bool
}

// queryResult is the --json document.
type queryResult struct {
	*search.Response
	Answer string `json:"answer,omitempty"`
	Model  string `json:"model,omitempty"`
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve passages and answer a question",
		Long: `Retrieve the passages most relevant to a question.

Strategies:
  auto      route by query shape (default)
  bm25      keyword relevance only
  semantic  embedding similarity only
  hybrid    blend both, weighted by --alpha (default 0.5)

When an OpenAI API key is available the passages are sent to a chat model
and the answer is printed after them. Use --no-generate to skip that step.`,
		Example: `  docrag query "how do I rotate the signing key"
  docrag query "ConfigLoader::merge" --strategy bm25
  docrag query "what is eventual consistency" --strategy hybrid --alpha 0.3 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("strategy") {
				opts.strategy = g.cfg.Search.Strategy
			}
			alpha := g.cfg.Search.Alpha
			if cmd.Flags().Changed("alpha") {
				alpha = &opts.alpha
			}
			return runQuery(cmd.Context(), cmd, g, strings.Join(args, " "), alpha, opts)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "auto", "Retrieval strategy: auto, bm25, semantic, hybrid")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", search.DefaultHybridAlpha, "Lexical weight in [0,1] for --strategy hybrid")
	cmd.Flags().BoolVar(&opts.noGenerate, "no-generate", false, "Print passages only")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show how each score was computed")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, g *globalOptions, query string, alpha *float64, opts queryOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	strategy, err := search.ParseStrategy(opts.strategy)
	if err != nil {
		return err
	}
	if alpha != nil {
		if err := search.ValidateAlpha(*alpha); err != nil {
			return err
		}
	}

	session, err := g.openRetrieval(false)
	if err != nil {
		return err
	}
	defer session.Close()

	resp, err := session.retriever.Retrieve(ctx, search.Request{
		Query:    query,
		K:        g.cfg.Search.TopK,
		Strategy: strategy,
		Alpha:    alpha,
	})
	if err != nil {
		return err
	}
	slog.Info("query_complete",
		slog.String("strategy", string(resp.Strategy)),
		slog.String("route", string(resp.Route.Kind)),
		slog.Int("results", len(resp.Results)))

	result := queryResult{Response: resp}
	view := ui.NewResultsView(ui.NewConfig(cmd.OutOrStdout()), opts.explain)
	if !opts.jsonOutput {
		view.RenderResults(query, resp.Route, resp.Results)
	}

	generator, err := g.generator(opts.noGenerate)
	if err != nil {
		return err
	}
	if generator != nil && len(resp.Results) > 0 {
		answer, err := generator.Generate(ctx, generate.BuildPrompt(query, resp.Results))
		if err != nil {
			return err
		}
		result.Answer = answer
		result.Model = generator.Model()
		if !opts.jsonOutput {
			view.RenderAnswer(answer)
		}
	}

	if opts.jsonOutput {
		return output.New(cmd.OutOrStdout()).JSON(result)
	}
	return nil
}

// generator returns nil when generation is disabled or no API key is set.
func (g *globalOptions) generator(disabled bool) (*generate.Client, error) {
	if disabled || g.apiKey() == "" {
		return nil, nil
	}
	timeout, err := g.cfg.GenerationTimeout()
	if err != nil {
		return nil, err
	}
	gen := g.cfg.Generation
	return generate.NewClient(generate.Config{
		APIKey:      g.apiKey(),
		BaseURL:     gen.BaseURL,
		Model:       gen.Model,
		MaxTokens:   gen.MaxTokens,
		Temperature: gen.Temperature,
		Timeout:     timeout,
	})
}
