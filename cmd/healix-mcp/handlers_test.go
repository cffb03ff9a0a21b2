package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"healix/internal/models"
)

type recordingConversation struct {
	asked  []string
	resets int
}

func (r *recordingConversation) Ask(_ context.Context, q string) string {
	r.asked = append(r.asked, q)
	return "Target A1C is below 7%. (Source: guideline_diabetes.pdf, Page: 3)"
}

func (r *recordingConversation) Reset() { r.resets++ }

type fixedRetriever struct {
	results []models.ScoredChunk
	err     error
	gotK    int
}

func (f *fixedRetriever) Query(_ context.Context, _ string, k int) ([]models.ScoredChunk, error) {
	f.gotK = k
	return f.results, f.err
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleAsk(t *testing.T) {
	conv := &recordingConversation{}
	h := handleAsk(conv, arbor.NewNoOpLogger())

	res, err := h(context.Background(), call("ask_healix", map[string]any{"question": "What is the target A1C?"}))
	require.NoError(t, err)
	require.Contains(t, resultText(t, res), "guideline_diabetes.pdf")
	require.Equal(t, []string{"What is the target A1C?"}, conv.asked)

	res, err = h(context.Background(), call("ask_healix", map[string]any{}))
	require.NoError(t, err)
	require.Contains(t, resultText(t, res), "required")

	res, err = h(context.Background(), call("ask_healix", map[string]any{"question": strings.Repeat("a", maxQuestionLen+1)}))
	require.NoError(t, err)
	require.Contains(t, resultText(t, res), "at most")
	require.Len(t, conv.asked, 1)
}

func TestHandleSearchFormatsProvenance(t *testing.T) {
	r := &fixedRetriever{results: []models.ScoredChunk{{
		Chunk: models.Chunk{
			Content: "Target A1C is below 7%.",
			Provenance: models.Provenance{
				SourceName: "guideline_diabetes.pdf",
				PageOrRow:  "3",
				DocType:    models.DocTypeGuideline,
				Rank:       models.RankGuideline,
			},
		},
		Score: 0.91,
	}}}
	h := handleSearch(r, 5, arbor.NewNoOpLogger())

	res, err := h(context.Background(), call("search_corpus", map[string]any{"query": "a1c", "limit": float64(50)}))
	require.NoError(t, err)
	text := resultText(t, res)
	require.Contains(t, text, "guideline_diabetes.pdf (Page 3)")
	require.Contains(t, text, "Rank: 1")
	require.Contains(t, text, "Target A1C is below 7%.")
	require.Equal(t, maxSearchLimit, r.gotK)

	_, err = h(context.Background(), call("search_corpus", map[string]any{"query": "a1c"}))
	require.NoError(t, err)
	require.Equal(t, 5, r.gotK)
}

func TestHandleSearchErrorsAndEmpty(t *testing.T) {
	h := handleSearch(&fixedRetriever{err: errors.New("index offline")}, 5, arbor.NewNoOpLogger())
	res, err := h(context.Background(), call("search_corpus", map[string]any{"query": "fever"}))
	require.NoError(t, err)
	require.Contains(t, resultText(t, res), "index offline")

	h = handleSearch(&fixedRetriever{}, 5, arbor.NewNoOpLogger())
	res, err = h(context.Background(), call("search_corpus", map[string]any{"query": "fever"}))
	require.NoError(t, err)
	require.Contains(t, resultText(t, res), "No passages found")
}

func TestHandleClearHistory(t *testing.T) {
	conv := &recordingConversation{}
	res, err := handleClearHistory(conv)(context.Background(), call("clear_history", nil))
	require.NoError(t, err)
	require.Equal(t, "History cleared.", resultText(t, res))
	require.Equal(t, 1, conv.resets)
}
