package chat

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/providers"
)

// Rewriter turns a follow-up question into one that stands on its own.
type Rewriter struct {
	llm         providers.LLMProvider
	temperature float32
	logger      arbor.ILogger
}

func NewRewriter(llm providers.LLMProvider, temperature float32, logger arbor.ILogger) *Rewriter {
	return &Rewriter{llm: llm, temperature: temperature, logger: logger}
}

// Rewrite returns q unchanged when history is empty or the model fails.
func (r *Rewriter) Rewrite(ctx context.Context, q string, history []models.Turn) string {
	if len(history) == 0 {
		return q
	}
	resp, info, err := r.llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "rewrite_question",
		System:      rewriteSystemPrompt,
		Messages:    replay(history, q),
		Temperature: r.temperature,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("provider", info.Name).Msg("Question rewrite failed, using original question")
		return q
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		r.logger.Warn().Str("provider", info.Name).Msg("Question rewrite returned nothing, using original question")
		return q
	}
	r.logger.Debug().Str("original", q).Str("rewritten", out).Msg("Question rewritten")
	return out
}

// replay renders history as alternating user/assistant messages followed by q.
func replay(history []models.Turn, q string) []providers.Message {
	msgs := make([]providers.Message, 0, 2*len(history)+1)
	for _, t := range history {
		msgs = append(msgs,
			providers.Message{Role: providers.RoleUser, Content: t.Question},
			providers.Message{Role: providers.RoleAssistant, Content: t.Answer},
		)
	}
	return append(msgs, providers.Message{Role: providers.RoleUser, Content: q})
}
