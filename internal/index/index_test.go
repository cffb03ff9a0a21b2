package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/providers"
	"healix/internal/util"
)

func chunk(id, source, content string, rank models.Rank) models.Chunk {
	return models.Chunk{
		ChunkID: id,
		Content: content,
		Provenance: models.Provenance{
			SourceName: source,
			PageOrRow:  "1",
			DocType:    models.DocTypeGuideline,
			Rank:       rank,
		},
	}
}

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	store, err := OpenBadger(t.TempDir(), arbor.NewNoOpLogger())
	require.NoError(t, err)
	ix := New(providers.NewMockProvider(128), store, 128, arbor.NewNoOpLogger())
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestIndexQueryReturnsNearestWithProvenance(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.Upsert(ctx, []models.Chunk{
		chunk("a", "guideline_diabetes.pdf", "Target A1C is below 7% for most adults with diabetes.", models.RankGuideline),
		chunk("b", "faq_travel.csv", "Pack sunscreen and insect repellent for tropical trips.", models.RankFAQ),
	}))

	got, err := ix.Query(ctx, "what is the target A1C for diabetes", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ChunkID)
	require.Equal(t, "guideline_diabetes.pdf", got[0].SourceName)
	require.Equal(t, models.RankGuideline, got[0].Rank)
	require.Equal(t, "1", got[0].PageOrRow)
}

func TestIndexUpsertIsIdempotent(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()
	c := chunk("same", "guideline_x.pdf", "blood pressure targets", models.RankGuideline)
	require.NoError(t, ix.Upsert(ctx, []models.Chunk{c}))
	require.NoError(t, ix.Upsert(ctx, []models.Chunk{c}))

	got, err := ix.Query(ctx, "blood pressure", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestIndexClearAndDeleteSource(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.Upsert(ctx, []models.Chunk{
		chunk("a", "guideline_a.pdf", "insulin dosing", models.RankGuideline),
		chunk("b", "textbook_b.pdf", "insulin resistance", models.RankTextbook),
	}))

	sources, err := ix.Sources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"guideline_a.pdf", "textbook_b.pdf"}, sources)

	require.NoError(t, ix.DeleteSource(ctx, "guideline_a.pdf"))
	sources, err = ix.Sources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"textbook_b.pdf"}, sources)
	got, err := ix.Query(ctx, "insulin", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "textbook_b.pdf", got[0].SourceName)

	require.NoError(t, ix.Clear(ctx))
	require.NoError(t, ix.Clear(ctx))
	got, err = ix.Query(ctx, "insulin", 10)
	require.NoError(t, err)
	require.Empty(t, got)
	sources, err = ix.Sources(ctx)
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestIndexDefaultK(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()
	batch := make([]models.Chunk, 0, 8)
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		batch = append(batch, chunk(id, "guideline_k.pdf", "statin therapy note "+id, models.RankGuideline))
	}
	require.NoError(t, ix.Upsert(ctx, batch))
	got, err := ix.Query(ctx, "statin therapy", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultK)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	return nil, providers.ProviderInfo{}, errors.New("service unavailable")
}

func TestIndexWrapsEmbeddingFailures(t *testing.T) {
	store, err := OpenBadger(t.TempDir(), arbor.NewNoOpLogger())
	require.NoError(t, err)
	ix := New(brokenEmbedder{}, store, 8, arbor.NewNoOpLogger())
	defer ix.Close()

	err = ix.Upsert(context.Background(), []models.Chunk{chunk("a", "s", "x", 1)})
	require.ErrorIs(t, err, util.ErrIndexWrite)

	_, err = ix.Query(context.Background(), "x", 3)
	require.ErrorIs(t, err, util.ErrRetrieval)
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}
