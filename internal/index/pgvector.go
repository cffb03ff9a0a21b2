package index

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/storage"
	"healix/internal/vector"
)

// PGStore keeps chunks in Postgres and searches them with pgvector.
type PGStore struct {
	db       *storage.DB
	chunks   *storage.ChunkRepo
	searcher *vector.Searcher
	logger   arbor.ILogger
}

func OpenPG(ctx context.Context, dsn string, dim int, logger arbor.ILogger) (*PGStore, error) {
	db, err := storage.NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx, dim); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug().Int("dim", dim).Msg("pgvector index ready")
	return &PGStore{
		db:       db,
		chunks:   storage.NewChunkRepo(db),
		searcher: vector.NewSearcher(db.Pool),
		logger:   logger,
	}, nil
}

func (p *PGStore) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert chunks: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	recs := make([]storage.ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		recs = append(recs, storage.ChunkRecord{
			ChunkID:    c.ChunkID,
			SourceName: c.SourceName,
			PageOrRow:  c.PageOrRow,
			DocType:    string(c.DocType),
			Rank:       int(c.Rank),
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Embedding:  vector.ToLiteral(vectors[i]),
		})
	}
	return p.chunks.UpsertChunks(ctx, recs)
}

func (p *PGStore) Search(ctx context.Context, vec []float32, k int) ([]models.ScoredChunk, error) {
	return p.searcher.SearchChunks(ctx, vec, k)
}

func (p *PGStore) DeleteSource(ctx context.Context, sourceName string) error {
	n, err := p.chunks.DeleteBySource(ctx, sourceName)
	if err != nil {
		return err
	}
	p.logger.Debug().Str("source", sourceName).Int64("deleted", n).Msg("Removed source chunks")
	return nil
}

func (p *PGStore) Sources(ctx context.Context) ([]string, error) {
	return p.chunks.SourceNames(ctx)
}

func (p *PGStore) Clear(ctx context.Context) error {
	return p.chunks.Truncate(ctx)
}

func (p *PGStore) DB() *storage.DB {
	return p.db
}

func (p *PGStore) Close() error {
	p.db.Close()
	return nil
}
