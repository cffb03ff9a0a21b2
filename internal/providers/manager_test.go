package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"healix/internal/config"
)

type failingLLM struct{ calls int }

func (f *failingLLM) Generate(context.Context, GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	f.calls++
	return GenerateResponse{}, ProviderInfo{Name: "failing"}, errors.New("service unavailable")
}

type slowLLM struct{}

func (slowLLM) Generate(ctx context.Context, _ GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	<-ctx.Done()
	return GenerateResponse{}, ProviderInfo{Name: "slow"}, ctx.Err()
}

func TestManagerFailsOverToNextProvider(t *testing.T) {
	bad := &failingLLM{}
	m := &Manager{
		llmProviders: []NamedLLMProvider{
			{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(8)},
			{Ref: ProviderRef{Raw: "flaky", Name: "flaky"}, Provider: bad},
		},
		timeout: time.Second,
		logger:  arbor.NewNoOpLogger(),
	}
	resp, info, err := m.Generate(context.Background(), GenerateRequest{Operation: "rewrite", Messages: []Message{{Role: RoleUser, Content: "what now?"}}})
	require.NoError(t, err)
	require.Equal(t, 1, bad.calls)
	require.Equal(t, "mock", info.Name)
	require.Equal(t, "what now?", resp.Text)
}

func TestManagerTimeoutIsRetryable(t *testing.T) {
	m := &Manager{
		llmProviders: []NamedLLMProvider{{Ref: ProviderRef{Raw: "slow", Name: "slow"}, Provider: slowLLM{}}},
		timeout:      20 * time.Millisecond,
		logger:       arbor.NewNoOpLogger(),
	}
	_, _, err := m.Generate(context.Background(), GenerateRequest{Operation: "answer"})
	require.Error(t, err)
	require.True(t, IsRetryable(err))
}

func TestNewManagerFallsBackToLocalEmbeddings(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := config.Default()
	m, err := NewManager(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	require.Equal(t, []string{"ollama"}, m.EmbedNames())
	require.Equal(t, []string{"gemini"}, m.LLMNames())
}

func TestNewManagerKeepsHostedEmbeddingsWithKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	m, err := NewManager(config.Default(), arbor.NewNoOpLogger())
	require.NoError(t, err)
	require.Equal(t, []string{"gemini"}, m.EmbedNames())
}

func TestNewManagerRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.LLM = "watson"
	_, err := NewManager(cfg, arbor.NewNoOpLogger())
	require.Error(t, err)
}

func TestNewManagerRejectsEmbedOnlyProviderForChat(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.LLM = "ollama"
	_, err := NewManager(cfg, arbor.NewNoOpLogger())
	require.Error(t, err)
}

func TestManagerEmbedWithMock(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Embed = "mock"
	cfg.Index.EmbedDim = 16
	m, err := NewManager(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	vecs, info, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 16})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 16)
}

func TestPreferredOrderMovesMockLast(t *testing.T) {
	names := []string{"mock", "gemini", "claude"}
	require.Equal(t, []int{1, 2, 0}, preferredOrder(len(names), func(i int) string { return names[i] }))
}

type recordingAuditor struct{ records []CallRecord }

func (r *recordingAuditor) RecordCall(_ context.Context, rec CallRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func TestManagerAuditsEachAttempt(t *testing.T) {
	bad := &failingLLM{}
	m := &Manager{
		llmProviders: []NamedLLMProvider{
			{Ref: ProviderRef{Raw: "flaky", Name: "flaky"}, Provider: bad},
			{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(8)},
		},
		timeout: time.Second,
		logger:  arbor.NewNoOpLogger(),
	}
	rec := &recordingAuditor{}
	m.SetAuditor(rec)

	_, _, err := m.Generate(context.Background(), GenerateRequest{Operation: "answer", System: "Context:\n"})
	require.NoError(t, err)
	require.Len(t, rec.records, 2)
	require.Equal(t, "flaky", rec.records[0].Provider)
	require.Equal(t, CallStatusError, rec.records[0].Status)
	require.Equal(t, ErrorTransient, rec.records[0].ErrorType)
	require.Equal(t, "mock", rec.records[1].Provider)
	require.Equal(t, CallStatusOK, rec.records[1].Status)
	require.Equal(t, CallKindGenerate, rec.records[1].Kind)
}
