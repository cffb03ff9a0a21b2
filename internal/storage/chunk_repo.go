package storage

import (
	"context"
	"fmt"
)

type ChunkRecord struct {
	ChunkID    string
	SourceName string
	PageOrRow  string
	DocType    string
	Rank       int
	ChunkIndex int
	Content    string
	// Embedding is a pgvector literal such as "[0.1,0.2]".
	Embedding string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, source_name, page_or_row, doc_type, rank, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
ON CONFLICT (chunk_id)
DO UPDATE SET
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding`,
			c.ChunkID, c.SourceName, c.PageOrRow, c.DocType, c.Rank, c.ChunkIndex, c.Content, c.Embedding,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) DeleteBySource(ctx context.Context, sourceName string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE source_name=$1`, sourceName)
	if err != nil {
		return 0, fmt.Errorf("delete chunks by source: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SourceNames lists the distinct source files that have chunks stored.
func (r *ChunkRepo) SourceNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT source_name FROM chunks ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("query source names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan source name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source names: %w", err)
	}
	return names, nil
}

func (r *ChunkRepo) Truncate(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `TRUNCATE TABLE chunks`); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}
