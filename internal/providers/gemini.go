package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider serves chat and embeddings through the Google Gen AI SDK.
// The client is created lazily so a missing key only fails the call that needs it.
type GeminiProvider struct {
	keyName    string
	apiKey     string
	chatModel  string
	embedModel string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(keyName, chatModel, embedModel string) *GeminiProvider {
	return &GeminiProvider{
		keyName:    keyName,
		apiKey:     resolveGeminiKey(keyName),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

func (g *GeminiProvider) HasCredentials() bool {
	return g.apiKey != ""
}

func (g *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		if g.apiKey == "" {
			g.initErr = fmt.Errorf("gemini key missing for alias %q", g.keyName)
			return
		}
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.client, g.initErr
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.chatModel, Key: g.keyName}
	client, err := g.getClient(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
	}
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(req.Temperature)}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.chatModel, contents, config)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate: %w", err)
	}
	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
		}
	}
	if out.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no text")
	}
	return GenerateResponse{Text: out.String()}, info, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.embedModel, Key: g.keyName}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, info, err
	}
	var cfg *genai.EmbedContentConfig
	if req.Dimension > 0 {
		dim := int32(req.Dimension)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		result, err := client.Models.EmbedContent(ctx, g.embedModel, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
		if err != nil {
			return nil, info, fmt.Errorf("gemini embed: %w", err)
		}
		if result == nil || len(result.Embeddings) == 0 {
			return nil, info, fmt.Errorf("gemini returned empty embedding")
		}
		out = append(out, matchDimension(result.Embeddings[0].Values, req.Dimension))
	}
	return out, info, nil
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("HEALIX_GEMINI_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GOOGLE_API_KEY")
}
