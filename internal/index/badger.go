package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"healix/internal/models"
	"healix/internal/util"
)

// chunkRecord is the persisted form of a chunk and its embedding.
type chunkRecord struct {
	ID         string
	SourceName string
	PageOrRow  string
	DocType    string
	Rank       int
	ChunkIndex int
	Content    string
	Vector     []float32
}

func toRecord(c models.Chunk, v []float32) chunkRecord {
	return chunkRecord{
		ID:         c.ChunkID,
		SourceName: c.SourceName,
		PageOrRow:  c.PageOrRow,
		DocType:    string(c.DocType),
		Rank:       int(c.Rank),
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Vector:     v,
	}
}

func (r chunkRecord) chunk() models.Chunk {
	return models.Chunk{
		ChunkID:    r.ID,
		ChunkIndex: r.ChunkIndex,
		Content:    r.Content,
		Provenance: models.Provenance{
			SourceName: r.SourceName,
			PageOrRow:  r.PageOrRow,
			DocType:    models.DocType(r.DocType),
			Rank:       models.Rank(r.Rank),
		},
	}
}

// BadgerStore is an embedded on-disk VectorStore with brute-force cosine search.
type BadgerStore struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

func OpenBadger(path string, logger arbor.ILogger) (*BadgerStore, error) {
	if err := util.EnsureDir(path); err != nil {
		return nil, err
	}
	logger.Debug().Str("path", path).Msg("Opening Badger index")

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger index: %w", err)
	}
	return &BadgerStore{store: store, logger: logger}, nil
}

func (b *BadgerStore) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert chunks: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := toRecord(c, vectors[i])
		if err := b.store.Upsert(rec.ID, &rec); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (b *BadgerStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	var records []chunkRecord
	if err := b.store.Find(&records, badgerhold.Where("ID").Ne("")); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return topK(records, vector, k), nil
}

func (b *BadgerStore) DeleteSource(_ context.Context, sourceName string) error {
	if err := b.store.DeleteMatching(&chunkRecord{}, badgerhold.Where("SourceName").Eq(sourceName)); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", sourceName, err)
	}
	return nil
}

func (b *BadgerStore) Sources(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	err := b.store.ForEach(nil, func(r *chunkRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[r.SourceName] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list indexed sources: %w", err)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *BadgerStore) Clear(_ context.Context) error {
	if err := b.store.DeleteMatching(&chunkRecord{}, nil); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

func (b *BadgerStore) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

func topK(records []chunkRecord, query []float32, k int) []models.ScoredChunk {
	scored := make([]models.ScoredChunk, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != len(query) {
			continue
		}
		scored = append(scored, models.ScoredChunk{Chunk: r.chunk(), Score: Cosine(query, r.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].ChunkID < scored[j].ChunkID
		}
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
