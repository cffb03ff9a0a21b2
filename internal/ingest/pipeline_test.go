package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"healix/internal/chat"
	"healix/internal/chunker"
	"healix/internal/corpus"
	"healix/internal/index"
	"healix/internal/normalize"
	"healix/internal/providers"
	"healix/internal/util"
)

type pagesByFile map[string][]corpus.Unit

func (p pagesByFile) Extract(_ context.Context, path string) ([]corpus.Unit, error) {
	units, ok := p[filepath.Base(path)]
	if !ok {
		return nil, util.ErrNoExtractableText
	}
	return units, nil
}

type harness struct {
	dir      string
	stateDir string
	pages    pagesByFile
	ix       *index.Index
	pipeline *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), stateDir: t.TempDir(), pages: pagesByFile{}}
	store, err := index.OpenBadger(filepath.Join(t.TempDir(), "index"), arbor.NewNoOpLogger())
	require.NoError(t, err)
	h.ix = index.New(providers.NewMockProvider(256), store, 256, arbor.NewNoOpLogger())
	t.Cleanup(func() { _ = h.ix.Close() })

	loader := corpus.NewLoader(normalize.New(), arbor.NewNoOpLogger(), corpus.WithExtractor(corpus.Paginated, h.pages))
	h.pipeline = NewPipeline(loader, chunker.New(chunker.DefaultMaxSize, chunker.DefaultOverlap), h.ix,
		index.BatchOptions{Size: 2}, h.stateDir, arbor.NewNoOpLogger())
	return h
}

func (h *harness) addPDF(t *testing.T, name string, pages ...string) {
	t.Helper()
	units := make([]corpus.Unit, 0, len(pages))
	for i, p := range pages {
		units = append(units, corpus.Unit{Text: p, PageOrRow: string(rune('1' + i))})
	}
	h.pages[name] = units
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, name), []byte("%PDF"), 0o644))
}

func TestIngestEndToEndWithConflictingSources(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "guideline_diabetes.pdf", "Target A1C is below 7% for most adults.", "Metformin is first-line therapy.")
	h.addPDF(t, "textbook_endocrinology.pdf", "Target A1C is below 6.5% for most adults.")
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "faq.csv"), []byte("question,answer\nIs diabetes curable?,Type 2 can go into remission\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "notes.txt"), []byte("ignored"), 0o644))

	rep, err := h.pipeline.Ingest(context.Background(), h.dir)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Files)
	require.Equal(t, 3, rep.Loaded)
	require.Equal(t, 4, rep.Documents)
	require.Equal(t, 4, rep.Indexed)
	require.Equal(t, []string{"notes.txt"}, rep.Skipped)
	require.Empty(t, rep.Failures)

	raw, err := os.ReadFile(filepath.Join(h.stateDir, SummaryFile))
	require.NoError(t, err)
	var saved Report
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Equal(t, 4, saved.Indexed)

	results, err := h.ix.Query(context.Background(), "target A1C for adults", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, strings.HasPrefix(r.Content, "Target A1C"), r.Content)
	}

	session := chat.NewSession(providers.NewMockProvider(256), h.ix, chat.Options{K: 2}, arbor.NewNoOpLogger())
	answer := session.Ask(context.Background(), "What is the target A1C for adults?")
	require.True(t, strings.HasPrefix(answer, "Target A1C is below 7% for most adults."), answer)
	require.Contains(t, answer, "guideline_diabetes.pdf")
	require.Contains(t, answer, "conflict")
}

func TestIngestNoDocuments(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.Ingest(context.Background(), h.dir)
	require.ErrorIs(t, err, util.ErrNoDocuments)

	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "readme.txt"), []byte("x"), 0o644))
	_, err = h.pipeline.Ingest(context.Background(), h.dir)
	require.ErrorIs(t, err, util.ErrNoDocuments)
	require.False(t, errors.Is(err, util.ErrAllFailed))
}

func TestIngestAllFailed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "guideline_scanned.pdf"), []byte("%PDF"), 0o644))

	rep, err := h.pipeline.Ingest(context.Background(), h.dir)
	require.ErrorIs(t, err, util.ErrAllFailed)
	require.False(t, errors.Is(err, util.ErrNoDocuments))
	require.Len(t, rep.Failures, 1)
	require.Equal(t, "guideline_scanned.pdf", rep.Failures[0].Item)
}

func TestIngestFileReplacesPreviousChunks(t *testing.T) {
	h := newHarness(t)
	h.addPDF(t, "guideline_bp.pdf", "Blood pressure goal is 140/90.")
	_, err := h.pipeline.Ingest(context.Background(), h.dir)
	require.NoError(t, err)

	h.addPDF(t, "guideline_bp.pdf", "Blood pressure goal is 130/80.")
	rep, err := h.pipeline.IngestFile(context.Background(), filepath.Join(h.dir, "guideline_bp.pdf"))
	require.NoError(t, err)
	require.Equal(t, 1, rep.Indexed)

	results, err := h.ix.Query(context.Background(), "blood pressure goal", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Content, "130/80")

	require.NoError(t, h.pipeline.RemoveFile(context.Background(), filepath.Join(h.dir, "guideline_bp.pdf")))
	results, err = h.ix.Query(context.Background(), "blood pressure goal", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestReingestReplacesChangedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addPDF(t, "guideline_diabetes.pdf", "Target A1C is below 7% for most adults.")
	_, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)

	h.addPDF(t, "guideline_diabetes.pdf", "Target A1C is below 8% for older adults.")
	rep, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Indexed)
	require.Empty(t, rep.Removed)

	results, err := h.ix.Query(ctx, "target A1C", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Content, "below 8%")
}

func TestReingestDropsDeletedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addPDF(t, "guideline_diabetes.pdf", "Target A1C is below 7% for most adults.")
	h.addPDF(t, "textbook_cardiology.pdf", "Statins lower LDL cholesterol.")
	_, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(h.dir, "textbook_cardiology.pdf")))
	rep, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)
	require.Equal(t, []string{"textbook_cardiology.pdf"}, rep.Removed)

	sources, err := h.ix.Sources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"guideline_diabetes.pdf"}, sources)
}

func TestReingestKeepsChunksOfFileThatFailsToLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addPDF(t, "guideline_diabetes.pdf", "Target A1C is below 7% for most adults.")
	h.addPDF(t, "guideline_bp.pdf", "Blood pressure goal is 130/80.")
	_, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)

	delete(h.pages, "guideline_bp.pdf")
	rep, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	require.Equal(t, "guideline_bp.pdf", rep.Failures[0].Item)

	sources, err := h.ix.Sources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"guideline_bp.pdf", "guideline_diabetes.pdf"}, sources)
}

func TestIngestFileFailureKeepsPreviousChunks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addPDF(t, "guideline_bp.pdf", "Blood pressure goal is 130/80.")
	_, err := h.pipeline.Ingest(ctx, h.dir)
	require.NoError(t, err)

	delete(h.pages, "guideline_bp.pdf")
	rep, err := h.pipeline.IngestFile(ctx, filepath.Join(h.dir, "guideline_bp.pdf"))
	require.ErrorIs(t, err, util.ErrIngestion)
	require.Len(t, rep.Failures, 1)

	results, err := h.ix.Query(ctx, "blood pressure goal", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestClearIndexIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.pipeline.ClearIndex(context.Background()))
	h.addPDF(t, "guideline_x.pdf", "Some guideline text here.")
	_, err := h.pipeline.Ingest(context.Background(), h.dir)
	require.NoError(t, err)
	require.NoError(t, h.pipeline.ClearIndex(context.Background()))
	require.NoError(t, h.pipeline.ClearIndex(context.Background()))

	results, err := h.ix.Query(context.Background(), "guideline text", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
