package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"healix/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// credentialed is implemented by hosted providers that need an API key.
type credentialed interface {
	HasCredentials() bool
}

// Manager fans calls out over the configured providers in preference order.
// It satisfies both LLMProvider and EmbeddingProvider.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	limiter        *rate.Limiter
	timeout        time.Duration
	auditor        Auditor
	logger         arbor.ILogger
}

func NewManager(cfg config.Config, logger arbor.ILogger) (*Manager, error) {
	pc := cfg.Providers
	m := &Manager{timeout: pc.TimeoutDuration(), logger: logger}
	if pc.RequestsPerSecond > 0 {
		burst := int(pc.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(pc.RequestsPerSecond), burst)
	}

	for _, ref := range ParseProviderList(pc.LLM) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		if c, ok := p.(credentialed); ok && !c.HasCredentials() {
			logger.Warn().Str("provider", ref.Raw).Msg("No API key configured for chat provider; answers will fall back to an apology until it is set")
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}

	missing := 0
	for _, ref := range ParseProviderList(pc.Embed) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		if c, ok := p.(credentialed); ok && !c.HasCredentials() {
			missing++
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	if len(m.embedProviders) > 0 && missing == len(m.embedProviders) {
		logger.Warn().Str("providers", pc.Embed).Msg("No embedding credential found; falling back to local Ollama embeddings (this may be slow)")
		ref := ProviderRef{Raw: "ollama", Name: "ollama"}
		m.embedProviders = []NamedEmbedProvider{{Ref: ref, Provider: NewOllamaEmbeddingProvider("", m.timeout)}}
	}

	if len(m.embedProviders) == 0 {
		m.embedProviders = []NamedEmbedProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(cfg.Index.EmbedDim)}}
	}
	if len(m.llmProviders) == 0 {
		m.llmProviders = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(cfg.Index.EmbedDim)}}
	}
	return m, nil
}

// Generate tries each chat provider in preference order and returns the first success.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var lastErr error
	for _, idx := range m.PreferredLLMOrder() {
		p := m.llmProviders[idx]
		if err := m.wait(ctx); err != nil {
			return GenerateResponse{}, ProviderInfo{}, err
		}
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		resp, info, err := p.Provider.Generate(callCtx, req)
		cancel()
		m.audit(ctx, CallRecord{Operation: req.Operation, Kind: CallKindGenerate, Provider: p.Ref.Raw, Model: info.Model, Latency: time.Since(start)}, err)
		if err == nil {
			return resp, info, nil
		}
		lastErr = err
		m.logger.Warn().Err(err).Str("provider", p.Ref.Raw).Str("operation", req.Operation).Str("error_type", string(ClassifyError(err))).Msg("Chat provider failed")
	}
	return GenerateResponse{}, ProviderInfo{}, lastErr
}

// Embed tries each embedding provider in preference order and returns the first success.
func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	var lastErr error
	for _, idx := range m.PreferredEmbedOrder() {
		p := m.embedProviders[idx]
		if err := m.wait(ctx); err != nil {
			return nil, ProviderInfo{}, err
		}
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		vectors, info, err := p.Provider.Embed(callCtx, req)
		cancel()
		if err == nil && len(vectors) != len(req.Inputs) {
			err = fmt.Errorf("provider %s returned %d vectors for %d inputs", p.Ref.Raw, len(vectors), len(req.Inputs))
		}
		m.audit(ctx, CallRecord{Operation: req.Operation, Kind: CallKindEmbed, Provider: p.Ref.Raw, Model: info.Model, Latency: time.Since(start)}, err)
		if err == nil {
			return vectors, info, nil
		}
		lastErr = err
		m.logger.Warn().Err(err).Str("provider", p.Ref.Raw).Str("operation", req.Operation).Str("error_type", string(ClassifyError(err))).Msg("Embedding provider failed")
	}
	return nil, ProviderInfo{}, lastErr
}

func (m *Manager) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	return m.limiter.Wait(ctx)
}

func (m *Manager) LLMNames() []string {
	out := make([]string, 0, len(m.llmProviders))
	for _, p := range m.llmProviders {
		out = append(out, p.Ref.Raw)
	}
	return out
}

func (m *Manager) EmbedNames() []string {
	out := make([]string, 0, len(m.embedProviders))
	for _, p := range m.embedProviders {
		out = append(out, p.Ref.Raw)
	}
	return out
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

// preferredOrder keeps configured order but moves mock providers last.
func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, cfg config.Config) (any, error) {
	timeout := cfg.Providers.TimeoutDuration()
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.Index.EmbedDim), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias, cfg.Providers.GeminiChatModel, cfg.Providers.GeminiEmbedModel), nil
	case "claude":
		return NewClaudeProvider(ref.KeyAlias, cfg.Providers.ClaudeModel), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, timeout), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias, timeout), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
