// Package index runs incremental indexing: a hash diff against the lexical
// index and an embedding reuse pass over the vector store.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/embed"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/state"
	"github.com/Aman-CERP/docrag/internal/store"
	"github.com/Aman-CERP/docrag/internal/ui"
)

// Options configures one indexing run.
type Options struct {
	DocsDir        string
	IndexDir       string
	ChunkSize      int
	ChunkOverlap   int
	SkipEmbeddings bool
	// Force removes existing index artifacts before indexing.
	Force bool
	// WriterBuffer bounds buffered lexical operations (default store.DefaultWriterBuf).
	WriterBuffer int
	// EmbedBatchSize is the number of texts per EmbedBatch call.
	EmbedBatchSize int
}

// Report summarizes an indexing run.
type Report struct {
	RunID     string `json:"run_id"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`

	New       int `json:"new"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`

	LexicalWrites  int  `json:"lexical_writes"`
	LexicalSkipped bool `json:"lexical_skipped"`

	EmbeddingsReused   int  `json:"embeddings_reused"`
	EmbeddingsComputed int  `json:"embeddings_computed"`
	EmbeddingsRemoved  int  `json:"embeddings_removed"`
	EmbeddingsSkipped  bool `json:"embeddings_skipped"`

	Duration time.Duration `json:"duration"`
}

// Paths resolves the persisted artifacts inside an index directory.
type Paths struct {
	Dir        string
	State      string
	Lexical    string
	Embeddings string
}

// PathsFor returns the artifact paths for indexDir.
func PathsFor(indexDir string) Paths {
	return Paths{
		Dir:        indexDir,
		State:      filepath.Join(indexDir, state.FileName),
		Lexical:    filepath.Join(indexDir, store.LexicalDirName),
		Embeddings: filepath.Join(indexDir, store.EmbeddingsFile),
	}
}

// Dependencies are the collaborators a Pipeline needs.
type Dependencies struct {
	// Embedder is required unless every run skips embeddings.
	Embedder embed.Embedder
	// Renderer receives progress; nil discards it.
	Renderer ui.Renderer
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Pipeline executes indexing runs.
type Pipeline struct {
	embedder embed.Embedder
	renderer ui.Renderer
	now      func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(deps Dependencies) *Pipeline {
	p := &Pipeline{
		embedder: deps.Embedder,
		renderer: deps.Renderer,
		now:      deps.Now,
	}
	if p.renderer == nil {
		p.renderer = ui.NopRenderer{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run indexes opts.DocsDir into opts.IndexDir. Runs against the same index
// directory are serialized by a file lock; a concurrent run fails fast.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	opts = withDefaults(opts)

	if !opts.SkipEmbeddings && p.embedder == nil {
		return nil, docerrors.ConfigurationError("an embedder is required unless embeddings are skipped", nil)
	}

	paths := PathsFor(opts.IndexDir)
	lock := NewFileLock(paths.Dir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeIndexLocked, "failed to lock index directory", err)
	}
	if !acquired {
		return nil, docerrors.New(docerrors.ErrCodeIndexLocked, "another indexing run holds the lock", nil).
			WithDetail("lock", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	report := &Report{RunID: uuid.NewString()}
	log := slog.With(slog.String("run_id", report.RunID))
	log.Info("index_run_start",
		slog.String("docs_dir", opts.DocsDir),
		slog.String("index_dir", opts.IndexDir),
		slog.Int("chunk_size", opts.ChunkSize),
		slog.Int("chunk_overlap", opts.ChunkOverlap),
		slog.Bool("skip_embeddings", opts.SkipEmbeddings))

	if err := p.renderer.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = p.renderer.Stop() }()

	if opts.Force {
		if err := Reset(paths); err != nil {
			return nil, err
		}
		log.Info("index_reset", slog.String("index_dir", paths.Dir))
	}

	// Stage 1: load and chunk
	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: opts.DocsDir})
	docs, err := chunk.LoadDocuments(ctx, opts.DocsDir)
	if err != nil {
		return nil, err
	}
	report.Documents = len(docs)

	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageChunking, Total: len(docs), Current: len(docs)})
	chunks, err := chunk.ChunkDocuments(docs, opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	report.Chunks = len(chunks)
	log.Debug("corpus_chunked", slog.Int("documents", len(docs)), slog.Int("chunks", len(chunks)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: lexical diff
	p.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "comparing content hashes"})
	if err := p.applyLexical(ctx, log, paths, opts, chunks, report); err != nil {
		return nil, err
	}

	// Stage 3: embedding reuse
	if opts.SkipEmbeddings {
		report.EmbeddingsSkipped = true
		log.Info("embeddings_skipped")
		if err := pruneEmbeddings(log, paths, chunks, report); err != nil {
			return nil, err
		}
	} else if err := p.applyEmbeddings(ctx, log, paths, opts, chunks, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	p.renderer.Complete(p.completionStats(report))
	log.Info("index_run_complete",
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.Chunks),
		slog.Int("new", report.New),
		slog.Int("modified", report.Modified),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("removed", report.Removed),
		slog.Int("lexical_writes", report.LexicalWrites),
		slog.Int("embeddings_reused", report.EmbeddingsReused),
		slog.Int("embeddings_computed", report.EmbeddingsComputed),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// applyLexical diffs chunks against the persisted state and applies the
// changes to the lexical index. Nothing is written when nothing changed,
// except the state file on the first run.
func (p *Pipeline) applyLexical(ctx context.Context, log *slog.Logger, paths Paths, opts Options,
	chunks []chunk.Chunk, report *Report) error {
	prev, err := state.Load(paths.State)
	if err != nil {
		return err
	}

	changes := state.Diff(prev, chunks)
	report.New = len(changes.New)
	report.Modified = len(changes.Modified)
	report.Unchanged = len(changes.Unchanged)
	report.Removed = len(changes.Removed)

	if changes.Empty() {
		report.LexicalSkipped = true
		log.Info("lexical_unchanged", slog.Int("chunks", len(chunks)))
		if store.Exists(paths.State) {
			return nil
		}
		// First run over an empty corpus still records a built index.
		prev.Apply(changes, p.now())
		return prev.Save(paths.State)
	}

	idx, err := store.OpenLexicalIndex(paths.Lexical)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	w, err := idx.Writer(opts.WriterBuffer)
	if err != nil {
		return err
	}

	for _, id := range changes.Removed {
		if err := w.Delete(id); err != nil {
			return err
		}
	}
	for _, c := range changes.Modified {
		if err := w.Delete(c.ID); err != nil {
			return err
		}
	}

	total := len(changes.New) + len(changes.Modified)
	done := 0
	for _, group := range [][]chunk.Chunk{changes.New, changes.Modified} {
		for _, c := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.Add(c); err != nil {
				return err
			}
			done++
			p.renderer.UpdateProgress(ui.ProgressEvent{
				Stage: ui.StageIndexing, Current: done, Total: total, CurrentFile: c.Source,
			})
		}
	}
	if err := w.Commit(); err != nil {
		return err
	}
	report.LexicalWrites = w.Writes()

	prev.Apply(changes, p.now())
	if err := prev.Save(paths.State); err != nil {
		return err
	}

	log.Info("lexical_committed",
		slog.Int("new", report.New),
		slog.Int("modified", report.Modified),
		slog.Int("removed", report.Removed),
		slog.Int("writes", report.LexicalWrites))
	return nil
}

// applyEmbeddings reuses a stored embedding when the stored text equals the
// current text and the vector came from the active model at its width. It
// embeds everything else, then drops vanished ids.
func (p *Pipeline) applyEmbeddings(ctx context.Context, log *slog.Logger, paths Paths, opts Options,
	chunks []chunk.Chunk, report *Report) error {
	vs, err := openVectorStore(paths.Embeddings)
	if err != nil {
		return err
	}

	model := p.embedder.ModelName()
	dims, err := p.resolveDimensions(ctx, chunks)
	if err != nil {
		return err
	}

	var pending []chunk.Chunk
	stale := 0
	keep := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		keep[c.ID] = struct{}{}
		stored, ok := vs.Get(c.ID)
		if ok && stored.Text == c.Text && stored.HasEmbedding() {
			if stored.Model == model && len(stored.Embedding) == dims {
				vs.Upsert(store.EnhancedChunk{Chunk: c, Embedding: stored.Embedding, Model: model})
				report.EmbeddingsReused++
				continue
			}
			stale++
		}
		pending = append(pending, c)
	}
	if stale > 0 {
		log.Info("embeddings_model_changed",
			slog.String("model", model),
			slog.Int("dimensions", dims),
			slog.Int("recomputed", stale))
	}

	total := len(pending)
	for start := 0; start < total; start += opts.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+opts.EmbedBatchSize, total)
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = embed.Text(c.Heading, c.Text)
		}
		vecs, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vecs) != len(batch) {
			return docerrors.New(docerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedder returned %d vectors for %d texts", len(vecs), len(batch)), nil)
		}
		for i, c := range batch {
			if len(vecs[i]) != dims {
				return docerrors.New(docerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("embedder returned a %d-dimension vector, expected %d", len(vecs[i]), dims), nil).
					WithDetail("chunk", c.ID).
					WithDetail("model", model)
			}
			vs.Upsert(store.EnhancedChunk{Chunk: c, Embedding: vecs[i], Model: model})
		}
		report.EmbeddingsComputed += len(batch)

		p.renderer.UpdateProgress(ui.ProgressEvent{
			Stage: ui.StageEmbedding, Current: end, Total: total, CurrentFile: batch[len(batch)-1].Source,
		})
	}

	report.EmbeddingsRemoved = vs.Retain(keep)
	if err := vs.Save(); err != nil {
		return err
	}

	log.Info("embeddings_saved",
		slog.String("model", p.embedder.ModelName()),
		slog.Int("reused", report.EmbeddingsReused),
		slog.Int("computed", report.EmbeddingsComputed),
		slog.Int("removed", report.EmbeddingsRemoved))
	return nil
}

// resolveDimensions returns the embedder's vector width. Embedders that only
// learn their width from the first response are asked to embed one chunk.
func (p *Pipeline) resolveDimensions(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	if dims := p.embedder.Dimensions(); dims > 0 || len(chunks) == 0 {
		return dims, nil
	}
	vec, err := p.embedder.Embed(ctx, embed.Text(chunks[0].Heading, chunks[0].Text))
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, docerrors.New(docerrors.ErrCodeEmbeddingFailed, "embedder returned an empty vector", nil).
			WithDetail("model", p.embedder.ModelName())
	}
	return len(vec), nil
}

// pruneEmbeddings drops snapshot entries for vanished chunks without
// computing new vectors.
func pruneEmbeddings(log *slog.Logger, paths Paths, chunks []chunk.Chunk, report *Report) error {
	if !store.Exists(paths.Embeddings) {
		return nil
	}
	vs, err := store.LoadVectorStore(paths.Embeddings)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		keep[c.ID] = struct{}{}
	}
	report.EmbeddingsRemoved = vs.Retain(keep)
	if report.EmbeddingsRemoved == 0 {
		return nil
	}
	if err := vs.Save(); err != nil {
		return err
	}
	log.Info("embeddings_pruned", slog.Int("removed", report.EmbeddingsRemoved))
	return nil
}

func openVectorStore(path string) (*store.VectorStore, error) {
	if store.Exists(path) {
		return store.LoadVectorStore(path)
	}
	return store.NewVectorStore(path), nil
}

func (p *Pipeline) completionStats(r *Report) ui.CompletionStats {
	stats := ui.CompletionStats{
		Documents:          r.Documents,
		Chunks:             r.Chunks,
		New:                r.New,
		Modified:           r.Modified,
		Unchanged:          r.Unchanged,
		Removed:            r.Removed,
		LexicalWrites:      r.LexicalWrites,
		LexicalSkipped:     r.LexicalSkipped,
		EmbeddingsReused:   r.EmbeddingsReused,
		EmbeddingsComputed: r.EmbeddingsComputed,
		EmbeddingsSkipped:  r.EmbeddingsSkipped,
		Duration:           r.Duration,
	}
	if p.embedder != nil && !r.EmbeddingsSkipped {
		stats.Embedder = ui.EmbedderInfo{Model: p.embedder.ModelName(), Dimensions: p.embedder.Dimensions()}
	}
	return stats
}

// Reset removes the state file, lexical index and embeddings snapshot.
func Reset(paths Paths) error {
	for _, target := range []string{paths.State, paths.Embeddings, paths.Lexical} {
		if err := os.RemoveAll(target); err != nil {
			return docerrors.New(docerrors.ErrCodeFileWrite, fmt.Sprintf("failed to remove %s", target), err)
		}
	}
	return nil
}

func withDefaults(opts Options) Options {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = chunk.DefaultChunkSize
	}
	if opts.WriterBuffer <= 0 {
		opts.WriterBuffer = store.DefaultWriterBuf
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = embed.DefaultBatchSize
	}
	return opts
}
