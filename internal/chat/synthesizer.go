package chat

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/providers"
)

// Answer is the synthesized reply. Degraded is set when the fallback text was returned.
type Answer struct {
	Text     string
	Degraded bool
}

type Synthesizer struct {
	llm         providers.LLMProvider
	temperature float32
	logger      arbor.ILogger
}

func NewSynthesizer(llm providers.LLMProvider, temperature float32, logger arbor.ILogger) *Synthesizer {
	return &Synthesizer{llm: llm, temperature: temperature, logger: logger}
}

// Synthesize answers q from the assembled context. It never returns an error.
func (s *Synthesizer) Synthesize(ctx context.Context, q string, history []models.Turn, contextText string) Answer {
	resp, info, err := s.llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "answer",
		System:      answerSystemPrompt + contextText,
		Messages:    replay(history, q),
		Temperature: s.temperature,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("provider", info.Name).Str("error_type", string(providers.ClassifyError(err))).Msg("Error generating answer")
		return Answer{Text: FallbackAnswer, Degraded: true}
	}
	text := strings.TrimSpace(strings.ReplaceAll(resp.Text, "**", ""))
	if text == "" {
		s.logger.Error().Str("provider", info.Name).Msg("Model returned an empty answer")
		return Answer{Text: FallbackAnswer, Degraded: true}
	}
	return Answer{Text: withEmergencyWarning(q, text)}
}
