package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// isolate points the user config at an empty directory and clears DOCRAG_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, key := range []string{
		"DOCS_DIR", "INDEX_DIR", "STRATEGY", "VECTOR_MODE", "EMBEDDINGS_PROVIDER",
		"EMBEDDINGS_MODEL", "EMBEDDINGS_HOST", "GENERATION_MODEL", "GENERATION_BASE_URL",
		"WATCH_DEBOUNCE", "LOG_LEVEL", "CHUNK_SIZE", "CHUNK_OVERLAP", "TOP_K", "EMBED_BATCH", "ALPHA",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "./docs", cfg.Paths.DocsDir)
	assert.Equal(t, "./index", cfg.Paths.IndexDir)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "auto", cfg.Search.Strategy)
	assert.Nil(t, cfg.Search.Alpha)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "exact", cfg.Search.VectorMode)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	assert.Equal(t, 2048, cfg.Generation.MaxTokens)
	require.NotNil(t, cfg.Generation.Temperature)
	assert.InDelta(t, 0.1, *cfg.Generation.Temperature, 1e-6)
	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	require.NoError(t, cfg.Validate())

	timeout, err := cfg.GenerationTimeout()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, timeout)
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	// Given: a project config that changes a few fields
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), `
chunking:
  size: 200
  overlap: 20
search:
  strategy: hybrid
  alpha: 0.7
  vector_mode: hnsw
embeddings:
  provider: ollama
  model: nomic-embed-text
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: file values win and everything else keeps its default
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunking.Size)
	assert.Equal(t, 20, cfg.Chunking.Overlap)
	assert.Equal(t, "hybrid", cfg.Search.Strategy)
	require.NotNil(t, cfg.Search.Alpha)
	assert.InDelta(t, 0.7, *cfg.Search.Alpha, 1e-9)
	assert.Equal(t, "hnsw", cfg.Search.VectorMode)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "./docs", cfg.Paths.DocsDir)
}

func TestLoad_ZeroTemperatureIsKept(t *testing.T) {
	// Given: a project config asking for deterministic generation
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "generation:\n  temperature: 0\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: zero overrides the default instead of being treated as unset
	require.NoError(t, err)
	require.NotNil(t, cfg.Generation.Temperature)
	assert.Zero(t, *cfg.Generation.Temperature)
}

func TestLoad_YmlExtensionIsRecognized(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".docrag.yml"), "search:\n  top_k: 9\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Search.TopK)
}

func TestLoad_Precedence(t *testing.T) {
	// Given: the same field set in the user file, the project file and the env
	xdg := isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(xdg, "docrag", "config.yaml"), "search:\n  top_k: 7\n  strategy: bm25\npaths:\n  index_dir: /user/index\n")
	writeFile(t, filepath.Join(dir, ProjectConfigName), "search:\n  top_k: 8\n")
	t.Setenv("DOCRAG_STRATEGY", "semantic")

	// When: loading
	cfg, err := Load(dir)

	// Then: env beats project beats user beats defaults
	require.NoError(t, err)
	assert.Equal(t, "semantic", cfg.Search.Strategy)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, "/user/index", cfg.Paths.IndexDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DOCRAG_CHUNK_SIZE", "300")
	t.Setenv("DOCRAG_CHUNK_OVERLAP", "30")
	t.Setenv("DOCRAG_ALPHA", "0.25")
	t.Setenv("DOCRAG_EMBEDDINGS_PROVIDER", "openai")
	t.Setenv("DOCRAG_DOCS_DIR", "/corpus")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Chunking.Size)
	assert.Equal(t, 30, cfg.Chunking.Overlap)
	require.NotNil(t, cfg.Search.Alpha)
	assert.InDelta(t, 0.25, *cfg.Search.Alpha, 1e-9)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "/corpus", cfg.Paths.DocsDir)
}

func TestLoad_InvalidEnvNumber(t *testing.T) {
	isolate(t)
	t.Setenv("DOCRAG_TOP_K", "many")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}

func TestLoad_InvalidYaml(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "search: [unclosed\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Equal(t, docerrors.CategoryConfig, docerrors.GetCategory(err))
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "paths:\n  docs_dir: ./manuals\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "./manuals", cfg.Paths.DocsDir)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, docerrors.CategoryIO, docerrors.GetCategory(err))
}

func TestValidate_Rejects(t *testing.T) {
	alpha := 1.5
	hot := float32(2.5)
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }, docerrors.ErrCodeChunkParams},
		{"zero size", func(c *Config) { c.Chunking.Size = 0 }, docerrors.ErrCodeChunkParams},
		{"unknown strategy", func(c *Config) { c.Search.Strategy = "fuzzy" }, docerrors.ErrCodeInvalidStrategy},
		{"alpha out of range", func(c *Config) { c.Search.Alpha = &alpha }, docerrors.ErrCodeInvalidAlpha},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }, docerrors.ErrCodeConfigInvalid},
		{"unknown vector mode", func(c *Config) { c.Search.VectorMode = "ivf" }, docerrors.ErrCodeConfigInvalid},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "mlx" }, docerrors.ErrCodeConfigInvalid},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, docerrors.ErrCodeConfigInvalid},
		{"bad timeout", func(c *Config) { c.Generation.Timeout = "-1s" }, docerrors.ErrCodeConfigInvalid},
		{"temperature out of range", func(c *Config) { c.Generation.Temperature = &hot }, docerrors.ErrCodeConfigInvalid},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, docerrors.ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, docerrors.GetCode(err))
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a customized config written to a project file
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.Strategy = "bm25"
	cfg.Chunking.Size = 256
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	// When: loading the directory
	loaded, err := Load(dir)

	// Then: the written values come back
	require.NoError(t, err)
	assert.Equal(t, "bm25", loaded.Search.Strategy)
	assert.Equal(t, 256, loaded.Chunking.Size)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "docrag", "config.yaml"), GetUserConfigPath())
}
