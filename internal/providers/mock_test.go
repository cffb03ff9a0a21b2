package providers

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestMockEmbeddingsAreDeterministicAndUnitLength(t *testing.T) {
	p := NewMockProvider(64)
	a, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"target a1c for diabetes"}})
	require.NoError(t, err)
	b, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"target a1c for diabetes"}})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.InDelta(t, 1.0, cosine(a[0], a[0]), 1e-5)
}

func TestMockEmbeddingsShareVocabulary(t *testing.T) {
	p := NewMockProvider(256)
	vecs, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{
		"What is the target A1C?",
		"Target A1C is 7%.",
		"Aspirin dosing for headaches in children",
	}})
	require.NoError(t, err)
	require.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
}

func TestMockAnswerPrefersRankOneAndDisclosesConflict(t *testing.T) {
	system := "Policy...\n\nContext:\n" +
		"Source: textbook_endo.pdf (Page 12) [Type: textbook, Rank: 2]\nContent: Target A1C is below 6.5%.\n\n\n" +
		"Source: guideline_diabetes.pdf (Page 3) [Type: guideline, Rank: 1]\nContent: Target A1C is below 7%.\n"
	resp, _, err := NewMockProvider(8).Generate(context.Background(), GenerateRequest{Operation: "answer", System: system})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.Text, "Target A1C is below 7%. (Source: guideline_diabetes.pdf, Page: 3)"), resp.Text)
	require.Contains(t, resp.Text, "conflict")
	require.Contains(t, resp.Text, "textbook_endo.pdf")
}

func TestMockAnswerWithoutContext(t *testing.T) {
	resp, _, err := NewMockProvider(8).Generate(context.Background(), GenerateRequest{Operation: "answer", System: "Context:\n"})
	require.NoError(t, err)
	require.NotContains(t, resp.Text, "Source:")
}

func TestChatMessagesIncludesSystemAndRoles(t *testing.T) {
	msgs := chatMessages(GenerateRequest{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "q1"}, {Role: RoleAssistant, Content: "a1"}, {Role: "other", Content: "q2"}},
	})
	require.Len(t, msgs, 4)
	require.Equal(t, "system", msgs[0]["role"])
	require.Equal(t, "assistant", msgs[2]["role"])
	require.Equal(t, "user", msgs[3]["role"])
}
