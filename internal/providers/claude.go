package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider generates answers with Anthropic's Messages API.
type ClaudeProvider struct {
	keyName   string
	apiKey    string
	model     string
	maxTokens int64
	client    anthropic.Client
}

func NewClaudeProvider(keyName, model string) *ClaudeProvider {
	apiKey := resolveClaudeKey(keyName)
	return &ClaudeProvider{
		keyName:   keyName,
		apiKey:    apiKey,
		model:     model,
		maxTokens: 4096,
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (c *ClaudeProvider) HasCredentials() bool {
	return c.apiKey != ""
}

func (c *ClaudeProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "claude", Model: c.model, Key: c.keyName}
	if c.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("claude key missing for alias %q", c.keyName)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("claude generate: %w", err)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("claude returned no text")
	}
	return GenerateResponse{Text: out.String()}, info, nil
}

func resolveClaudeKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("HEALIX_CLAUDE_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}
