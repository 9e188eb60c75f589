// Package config loads docrag settings from defaults, YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/generate"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

// ProjectConfigName is the per-project config file looked up by Load.
const ProjectConfigName = ".docrag.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCRAG_"

// Config is the complete docrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates the corpus and the index.
type PathsConfig struct {
	DocsDir  string `yaml:"docs_dir" json:"docs_dir"`
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// ChunkingConfig sizes the sliding token window.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// SearchConfig configures retrieval. Alpha is the lexical weight of the
// hybrid strategy; nil selects 0.5. The other strategies ignore it.
type SearchConfig struct {
	Strategy       string   `yaml:"strategy" json:"strategy"`
	Alpha          *float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	TopK           int      `yaml:"top_k" json:"top_k"`
	VectorMode     string   `yaml:"vector_mode" json:"vector_mode"`
	RouteCacheSize int      `yaml:"route_cache_size" json:"route_cache_size"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	Host      string `yaml:"host" json:"host"` // Ollama host or OpenAI base URL
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
}

// GenerationConfig configures answer generation. A nil Temperature selects
// the generation default; an explicit 0 is kept.
type GenerationConfig struct {
	Model       string  `yaml:"model" json:"model"`
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature *float32 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Timeout     string  `yaml:"timeout" json:"timeout"`
}

// WatchConfig configures the corpus watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DocsDir:  "./docs",
			IndexDir: "./index",
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 50,
		},
		Search: SearchConfig{
			Strategy:       string(search.StrategyAuto),
			TopK:           5,
			VectorMode:     store.VectorModeExact,
			RouteCacheSize: search.DefaultRouteCacheSize,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  embed.ProviderStatic,
			BatchSize: embed.DefaultBatchSize,
		},
		Generation: GenerationConfig{
			Model:       generate.DefaultModel,
			MaxTokens:   generate.DefaultMaxTokens,
			Temperature: float32Ptr(generate.DefaultTemperature),
			Timeout:     generate.DefaultTimeout.String(),
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user-level config file:
// $XDG_CONFIG_HOME/docrag/config.yaml, or ~/.config/docrag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml")
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for dir in order of increasing precedence:
//  1. defaults
//  2. user config (GetUserConfigPath)
//  3. project config (dir/.docrag.yaml)
//  4. environment variables (DOCRAG_*)
//
// Command-line flags are applied on top by the caller.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile layers a single explicit config file over the defaults and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".docrag.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges the non-zero values of the file at path into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return docerrors.IOError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return docerrors.New(docerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Paths.DocsDir, other.Paths.DocsDir)
	mergeString(&c.Paths.IndexDir, other.Paths.IndexDir)

	mergeInt(&c.Chunking.Size, other.Chunking.Size)
	// Overlap 0 is a valid explicit choice but cannot be told apart from unset here.
	mergeInt(&c.Chunking.Overlap, other.Chunking.Overlap)

	mergeString(&c.Search.Strategy, other.Search.Strategy)
	if other.Search.Alpha != nil {
		alpha := *other.Search.Alpha
		c.Search.Alpha = &alpha
	}
	mergeInt(&c.Search.TopK, other.Search.TopK)
	mergeString(&c.Search.VectorMode, other.Search.VectorMode)
	mergeInt(&c.Search.RouteCacheSize, other.Search.RouteCacheSize)

	mergeString(&c.Embeddings.Provider, other.Embeddings.Provider)
	mergeString(&c.Embeddings.Model, other.Embeddings.Model)
	mergeString(&c.Embeddings.Host, other.Embeddings.Host)
	mergeInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)

	mergeString(&c.Generation.Model, other.Generation.Model)
	mergeString(&c.Generation.BaseURL, other.Generation.BaseURL)
	mergeInt(&c.Generation.MaxTokens, other.Generation.MaxTokens)
	if other.Generation.Temperature != nil {
		c.Generation.Temperature = float32Ptr(*other.Generation.Temperature)
	}
	mergeString(&c.Generation.Timeout, other.Generation.Timeout)

	mergeString(&c.Watch.Debounce, other.Watch.Debounce)

	mergeString(&c.Logging.Level, other.Logging.Level)
	mergeInt(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	mergeInt(&c.Logging.MaxFiles, other.Logging.MaxFiles)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies DOCRAG_* variables. Empty values are ignored.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"DOCS_DIR":            &c.Paths.DocsDir,
		"INDEX_DIR":           &c.Paths.IndexDir,
		"STRATEGY":            &c.Search.Strategy,
		"VECTOR_MODE":         &c.Search.VectorMode,
		"EMBEDDINGS_PROVIDER": &c.Embeddings.Provider,
		"EMBEDDINGS_MODEL":    &c.Embeddings.Model,
		"EMBEDDINGS_HOST":     &c.Embeddings.Host,
		"GENERATION_MODEL":    &c.Generation.Model,
		"GENERATION_BASE_URL": &c.Generation.BaseURL,
		"WATCH_DEBOUNCE":      &c.Watch.Debounce,
		"LOG_LEVEL":           &c.Logging.Level,
	}
	for key, dst := range strs {
		mergeString(dst, os.Getenv(EnvPrefix+key))
	}

	ints := map[string]*int{
		"CHUNK_SIZE":    &c.Chunking.Size,
		"CHUNK_OVERLAP": &c.Chunking.Overlap,
		"TOP_K":         &c.Search.TopK,
		"EMBED_BATCH":   &c.Embeddings.BatchSize,
	}
	for key, dst := range ints {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return envError(key, v, err)
		}
		*dst = n
	}

	if v := os.Getenv(EnvPrefix + "ALPHA"); v != "" {
		alpha, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return envError("ALPHA", v, err)
		}
		c.Search.Alpha = &alpha
	}
	return nil
}

func envError(key, value string, err error) error {
	return docerrors.New(docerrors.ErrCodeConfigInvalid,
		fmt.Sprintf("invalid %s%s=%q", EnvPrefix, key, value), err)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if err := chunk.ValidateParams(c.Chunking.Size, c.Chunking.Overlap); err != nil {
		return err
	}

	if _, err := search.ParseStrategy(c.Search.Strategy); err != nil {
		return err
	}
	if c.Search.Alpha != nil {
		if err := search.ValidateAlpha(*c.Search.Alpha); err != nil {
			return err
		}
	}
	if c.Search.TopK <= 0 {
		return docerrors.ConfigurationError(
			fmt.Sprintf("search.top_k must be positive, got %d", c.Search.TopK), nil)
	}
	switch strings.ToLower(c.Search.VectorMode) {
	case store.VectorModeExact, store.VectorModeHNSW:
	default:
		return docerrors.ConfigurationError(
			fmt.Sprintf("search.vector_mode must be 'exact' or 'hnsw', got %q", c.Search.VectorMode), nil)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case embed.ProviderStatic, embed.ProviderOllama, embed.ProviderOpenAI:
	default:
		return docerrors.ConfigurationError(
			fmt.Sprintf("embeddings.provider must be 'static', 'ollama' or 'openai', got %q", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.BatchSize < 0 {
		return docerrors.ConfigurationError(
			fmt.Sprintf("embeddings.batch_size must be non-negative, got %d", c.Embeddings.BatchSize), nil)
	}

	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return docerrors.ConfigurationError(
			fmt.Sprintf("generation.temperature must be within [0, 2], got %g", *t), nil)
	}
	if _, err := c.GenerationTimeout(); err != nil {
		return err
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return docerrors.ConfigurationError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn' or 'error', got %q", c.Logging.Level), nil)
	}
	return nil
}

// GenerationTimeout parses Generation.Timeout.
func (c *Config) GenerationTimeout() (time.Duration, error) {
	return parseDuration("generation.timeout", c.Generation.Timeout)
}

// WatchDebounce parses Watch.Debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	return parseDuration("watch.debounce", c.Watch.Debounce)
}

func parseDuration(field, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, docerrors.ConfigurationError(
			fmt.Sprintf("%s must be a positive duration, got %q", field, v), err)
	}
	return d, nil
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return docerrors.IOError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return docerrors.IOError("failed to write config file", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func float32Ptr(v float32) *float32 {
	return &v
}
