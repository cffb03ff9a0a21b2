package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Operation   string    `json:"operation"`
	System      string    `json:"system"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// chatMessages flattens a request into OpenAI-style role/content pairs.
func chatMessages(req GenerateRequest) []map[string]string {
	out := make([]map[string]string, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, map[string]string{"role": "system", "content": req.System})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		out = append(out, map[string]string{"role": role, "content": m.Content})
	}
	return out
}
