package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

const (
	installDoc = "# Installation\n\nDownload the release archive and run the installer. " +
		"The installer copies the binary into your PATH and writes a default configuration file."
	tuningDoc = "# Tuning\n\nThe fusion weight alpha balances keyword relevance against embedding similarity. " +
		"Raise alpha for exact identifiers and lower it for conceptual questions."
	faqDoc = "<html><body><h1>FAQ</h1><p>Why is my query slow? Large corpora need the approximate " +
		"vector index. Set vector_mode to hnsw in the configuration.</p></body></html>"
)

func seed(t *testing.T, c *corpus) {
	t.Helper()
	c.write(t, "install.md", installDoc)
	c.write(t, "guides/tuning.md", tuningDoc)
	c.write(t, "faq.html", faqDoc)
}

func TestIndexThenRetrieve_AllStrategies(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a corpus indexed with embeddings
	c := newCorpus(t)
	seed(t, c)
	report := c.build(t, false)
	require.Equal(t, 3, report.Documents)
	r := c.open(t)

	for _, strategy := range []search.Strategy{
		search.StrategyBM25, search.StrategySemantic, search.StrategyHybrid, search.StrategyAuto,
	} {
		t.Run(string(strategy), func(t *testing.T) {
			// When: retrieving with a distinctive keyword
			resp := retrieve(t, r, "installer binary PATH", strategy)

			// Then: the install guide ranks first with normalized descending scores
			require.NotEmpty(t, resp.Results)
			assert.Equal(t, "install.md", sources(resp.Results)[0])
			for i, res := range resp.Results {
				assert.GreaterOrEqual(t, res.CombinedScore, 0.0)
				assert.LessOrEqual(t, res.CombinedScore, 1.0)
				if i > 0 {
					assert.LessOrEqual(t, res.CombinedScore, resp.Results[i-1].CombinedScore)
				}
			}
		})
	}
}

func TestIndexThenRetrieve_HeadingsAndHTML(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	c := newCorpus(t)
	seed(t, c)
	c.build(t, true)
	r := c.open(t)

	// When: searching text that only appears inside HTML markup
	resp := retrieve(t, r, "hnsw vector_mode", search.StrategyBM25)

	// Then: the FAQ passage is found with tags stripped
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0].Chunk
	assert.Equal(t, "faq.html", sources(resp.Results)[0])
	assert.NotContains(t, top.Text, "<p>")

	// And: markdown passages carry their heading
	resp = retrieve(t, r, "fusion weight alpha", search.StrategyBM25)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "Tuning", resp.Results[0].Chunk.Heading)
}

func TestIndexThenRetrieve_LexicalOnlyIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an index built without embeddings
	c := newCorpus(t)
	seed(t, c)
	report := c.build(t, true)
	assert.True(t, report.EmbeddingsSkipped)
	r := c.open(t)

	// When/Then: explicit semantic retrieval reports missing embeddings
	_, err := r.Retrieve(context.Background(), search.Request{Query: "alpha", K: 3, Strategy: search.StrategySemantic})
	assert.Equal(t, docerrors.ErrCodeEmbeddingsMissing, docerrors.GetCode(err))

	// And: auto still answers lexically
	resp := retrieve(t, r, "alpha identifiers", search.StrategyAuto)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "tuning.md", sources(resp.Results)[0])
}

func TestIncrementalReindex_ReflectsChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed corpus
	c := newCorpus(t)
	seed(t, c)
	c.build(t, false)

	// When: one document is edited, one removed and one added
	c.write(t, "install.md", "# Installation\n\nUse the container image instead of the archive. Pull it from the registry and mount your docs folder.")
	c.remove(t, "faq.html")
	c.write(t, "upgrade.txt", "Upgrading keeps your configuration file in place and rebuilds the passage index on first start.")
	report := c.build(t, false)

	// Then: only the changes are applied
	assert.Equal(t, 3, report.Documents)
	assert.Positive(t, report.Modified+report.New)
	assert.Positive(t, report.Removed)
	assert.Positive(t, report.EmbeddingsReused)

	r := c.open(t)
	assert.Empty(t, retrieve(t, r, "hnsw", search.StrategyBM25).Results)

	resp := retrieve(t, r, "container image", search.StrategyHybrid)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "install.md", sources(resp.Results)[0])
}

func TestRetrieve_ApproximateVectorSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	c := newCorpus(t)
	seed(t, c)
	c.build(t, false)

	vectors, err := store.LoadVectorStore(index.PathsFor(c.index).Embeddings)
	require.NoError(t, err)

	// When: semantic search runs through the HNSW graph
	r := c.open(t, search.WithVectorSearcher(store.NewANNIndex(vectors)))
	resp := retrieve(t, r, "installer binary PATH", search.StrategySemantic)

	// Then: it agrees with the exact scan on the best passage
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "install.md", sources(resp.Results)[0])
}
