// Package cmd provides the CLI commands for docrag.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/config"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath   string
	docsDir      string
	indexDir     string
	chunkSize    int
	chunkOverlap int
	topK         int
	openAIKey    string
	debug        bool

	// Resolved in PersistentPreRunE.
	cfg            *config.Config
	loggingCleanup func()
}

// apiKey returns the OpenAI key from the flag or the environment.
func (g *globalOptions) apiKey() string {
	if g.openAIKey != "" {
		return g.openAIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// NewRootCmd creates the root command for the docrag CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docrag",
		Short: "Hybrid retrieval over a documentation corpus",
		Long: `docrag indexes a directory of documentation into passages and
retrieves the most relevant ones for a question by blending BM25 keyword
relevance with embedding similarity. Retrieved passages can be handed to
a chat model to produce a grounded answer.

Run 'docrag init' once, then 'docrag query "your question"'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if g.loggingCleanup != nil {
				g.loggingCleanup()
				g.loggingCleanup = nil
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("docrag version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "Config file (default: .docrag.yaml in the working directory)")
	flags.StringVar(&g.docsDir, "docs-dir", "./docs", "Directory containing the documentation corpus")
	flags.StringVar(&g.indexDir, "index-dir", "./index", "Directory holding the persisted index")
	flags.IntVar(&g.chunkSize, "chunk-size", chunk.DefaultChunkSize, "Passage size in whitespace tokens")
	flags.IntVar(&g.chunkOverlap, "chunk-overlap", chunk.DefaultChunkOverlap, "Tokens shared by consecutive passages")
	flags.IntVarP(&g.topK, "top-k", "k", 5, "Number of passages to retrieve")
	flags.StringVar(&g.openAIKey, "openai-api-key", "", "OpenAI API key (default: $OPENAI_API_KEY)")
	flags.BoolVar(&g.debug, "debug", false, "Enable debug logging to stderr and ~/.docrag/logs/")

	cmd.AddCommand(newInitCmd(g))
	cmd.AddCommand(newQueryCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads .env and configuration, applies flag overrides and starts logging.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	g.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.cfg = cfg

	return g.startLogging(cmd)
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, docerrors.IOError("failed to resolve working directory", err)
	}
	return config.Load(wd)
}

// applyFlags lets explicitly set flags win over every config source.
func (g *globalOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("docs-dir") {
		cfg.Paths.DocsDir = g.docsDir
	}
	if flags.Changed("index-dir") {
		cfg.Paths.IndexDir = g.indexDir
	}
	if flags.Changed("chunk-size") {
		cfg.Chunking.Size = g.chunkSize
	}
	if flags.Changed("chunk-overlap") {
		cfg.Chunking.Overlap = g.chunkOverlap
	}
	if flags.Changed("top-k") {
		cfg.Search.TopK = g.topK
	}
	if g.debug {
		cfg.Logging.Level = "debug"
	}
}

func (g *globalOptions) startLogging(cmd *cobra.Command) error {
	// The log viewer reads the log file and must not write to it.
	if cmd.Name() == "logs" {
		return nil
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = g.cfg.Logging.Level
	logCfg.MaxSizeMB = g.cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = g.cfg.Logging.MaxFiles
	logCfg.WriteToStderr = g.debug
	if cmd.Name() == "serve" {
		logCfg = logging.StdioSafe(logCfg)
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// File logging is best effort; keep warnings visible on stderr.
		logging.Quiet()
		slog.Warn("file_logging_unavailable", slog.String("error", err.Error()))
		return nil
	}
	g.loggingCleanup = cleanup
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("docs_dir", g.cfg.Paths.DocsDir),
		slog.String("index_dir", g.cfg.Paths.IndexDir),
		slog.String("log_file", logCfg.FilePath))
	return nil
}

// absIndexDir resolves the index directory for watcher exclusion.
func (g *globalOptions) absIndexDir() string {
	abs, err := filepath.Abs(g.cfg.Paths.IndexDir)
	if err != nil {
		return g.cfg.Paths.IndexDir
	}
	return abs
}

// Execute runs the root command and prints the first fatal error.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), docerrors.FormatForCLI(err))
	}
	return err
}
