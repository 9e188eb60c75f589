// Package integration exercises indexing, retrieval and watching together
// against real on-disk indexes.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

const (
	chunkSize    = 40
	chunkOverlap = 8
)

type corpus struct {
	docs     string
	index    string
	embedder embed.Embedder
	pipeline *index.Pipeline
}

func newCorpus(t *testing.T) *corpus {
	t.Helper()
	root := t.TempDir()
	c := &corpus{
		docs:     filepath.Join(root, "docs"),
		index:    filepath.Join(root, "index"),
		embedder: embed.NewStaticEmbedder(),
	}
	require.NoError(t, os.MkdirAll(c.docs, 0o755))
	c.pipeline = index.NewPipeline(index.Dependencies{Embedder: c.embedder})
	return c
}

func (c *corpus) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(c.docs, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (c *corpus) remove(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(c.docs, name)))
}

func (c *corpus) options(skipEmbeddings bool) index.Options {
	return index.Options{
		DocsDir:        c.docs,
		IndexDir:       c.index,
		ChunkSize:      chunkSize,
		ChunkOverlap:   chunkOverlap,
		SkipEmbeddings: skipEmbeddings,
	}
}

func (c *corpus) build(t *testing.T, skipEmbeddings bool) *index.Report {
	t.Helper()
	report, err := c.pipeline.Run(context.Background(), c.options(skipEmbeddings))
	require.NoError(t, err)
	return report
}

// open loads the persisted index the way the query command does.
func (c *corpus) open(t *testing.T, opts ...search.EngineOption) *search.Retriever {
	t.Helper()
	paths := index.PathsFor(c.index)

	vectors := store.NewVectorStore(paths.Embeddings)
	if store.Exists(paths.Embeddings) {
		var err error
		vectors, err = store.LoadVectorStore(paths.Embeddings)
		require.NoError(t, err)
	}

	lexical, err := store.OpenLexicalIndex(paths.Lexical)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	engine, err := search.NewEngine(lexical, vectors, c.embedder, opts...)
	require.NoError(t, err)
	return search.NewRetriever(nil, engine)
}

func retrieve(t *testing.T, r *search.Retriever, query string, strategy search.Strategy) *search.Response {
	t.Helper()
	resp, err := r.Retrieve(context.Background(), search.Request{Query: query, K: 5, Strategy: strategy})
	require.NoError(t, err)
	return resp
}

func sources(results []search.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = filepath.Base(r.Chunk.Source)
	}
	return out
}
