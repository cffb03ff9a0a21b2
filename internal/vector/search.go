package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"healix/internal/models"

	"github.com/jackc/pgx/v5"
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

const searchSQL = `
SELECT chunk_id, chunk_index, content, source_name, page_or_row, doc_type, rank,
       1 - (embedding <=> $1::vector) AS score
FROM chunks
ORDER BY embedding <=> $1::vector, chunk_id
LIMIT $2`

// SearchChunks returns the topK chunks nearest to queryVec by cosine distance.
func (s *Searcher) SearchChunks(ctx context.Context, queryVec []float32, topK int) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.q.Query(ctx, searchSQL, ToLiteral(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ScoredChunk, 0, topK)
	for rows.Next() {
		var (
			r       models.ScoredChunk
			docType string
			rank    int
		)
		if err := rows.Scan(&r.ChunkID, &r.ChunkIndex, &r.Content, &r.SourceName, &r.PageOrRow, &docType, &rank, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		r.DocType = models.DocType(docType)
		r.Rank = models.Rank(rank)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
