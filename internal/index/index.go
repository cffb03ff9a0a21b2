package index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/providers"
	"healix/internal/util"
)

// DefaultK is the number of chunks returned when the caller passes k <= 0.
const DefaultK = 5

// VectorStore persists chunks with their embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	DeleteSource(ctx context.Context, sourceName string) error
	// Sources lists the distinct source names that have chunks stored, sorted.
	Sources(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// Index embeds chunk text and keeps it in a VectorStore.
type Index struct {
	embedder providers.EmbeddingProvider
	store    VectorStore
	dim      int
	logger   arbor.ILogger

	mu sync.Mutex
}

func New(embedder providers.EmbeddingProvider, store VectorStore, dim int, logger arbor.ILogger) *Index {
	return &Index{embedder: embedder, store: store, dim: dim, logger: logger}
}

// Upsert embeds the batch and writes it. Chunks are keyed by ChunkID so re-running is idempotent.
func (ix *Index) Upsert(ctx context.Context, batch []models.Chunk) error {
	if len(batch) == 0 {
		return nil
	}
	inputs := make([]string, 0, len(batch))
	for _, c := range batch {
		inputs = append(inputs, c.Content)
	}
	vectors, info, err := ix.embedder.Embed(ctx, providers.EmbedRequest{Operation: "index_chunks", Inputs: inputs, Dimension: ix.dim})
	if err != nil {
		return fmt.Errorf("embed batch: %w: %w", util.ErrIndexWrite, err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed batch: %w: got %d vectors for %d chunks", util.ErrIndexWrite, len(vectors), len(batch))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.Upsert(ctx, batch, vectors); err != nil {
		return fmt.Errorf("store batch: %w: %w", util.ErrIndexWrite, err)
	}
	ix.logger.Debug().Int("chunks", len(batch)).Str("provider", info.Name).Str("model", info.Model).Msg("Indexed batch")
	return nil
}

// Query returns up to k chunks ordered by descending cosine similarity to text.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultK
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vectors, _, err := ix.embedder.Embed(ctx, providers.EmbedRequest{Operation: "query", Inputs: []string{text}, Dimension: ix.dim})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", util.ErrRetrieval, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w: got %d vectors", util.ErrRetrieval, len(vectors))
	}
	results, err := ix.store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w: %w", util.ErrRetrieval, err)
	}
	return results, nil
}

// Clear removes every chunk. Clearing an empty index is not an error.
func (ix *Index) Clear(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	ix.logger.Info().Msg("Index cleared")
	return nil
}

// DeleteSource removes the chunks of one source file.
func (ix *Index) DeleteSource(ctx context.Context, sourceName string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.DeleteSource(ctx, sourceName); err != nil {
		return fmt.Errorf("delete source %s: %w", sourceName, err)
	}
	return nil
}

func (ix *Index) Sources(ctx context.Context) ([]string, error) {
	names, err := ix.store.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return names, nil
}

// Store exposes the backing vector store.
func (ix *Index) Store() VectorStore {
	return ix.store
}

func (ix *Index) Close() error {
	return ix.store.Close()
}
