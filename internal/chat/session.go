package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/providers"
)

// State is the conversation lifecycle state.
type State string

const (
	StateEmpty  State = "empty"
	StateActive State = "active"
)

// Retriever returns the chunks most similar to a query.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error)
}

type Options struct {
	K           int
	MaxTurns    int
	Temperature float32
}

// Session is one conversation. It is not safe for concurrent use; callers serialise Ask and Reset.
type Session struct {
	ID string

	rewriter  *Rewriter
	retriever Retriever
	synth     *Synthesizer
	opts      Options
	history   []models.Turn
	logger    arbor.ILogger
	now       func() time.Time
}

func NewSession(llm providers.LLMProvider, retriever Retriever, opts Options, logger arbor.ILogger) *Session {
	if opts.K <= 0 {
		opts.K = 5
	}
	id := uuid.NewString()
	logger = logger.WithCorrelationId(id)
	logger.Info().Msg("Medical chatbot session initialized")
	return &Session{
		ID:        id,
		rewriter:  NewRewriter(llm, opts.Temperature, logger),
		retriever: retriever,
		synth:     NewSynthesizer(llm, opts.Temperature, logger),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Ask answers one question. A blank question returns "" and leaves the session untouched.
func (s *Session) Ask(ctx context.Context, q string) string {
	if strings.TrimSpace(q) == "" {
		return ""
	}
	s.logger.Info().Str("question", q).Msg("Processing query")

	standalone := s.rewriter.Rewrite(ctx, q, s.history)
	results, err := s.retriever.Query(ctx, standalone, s.opts.K)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Retrieval failed, answering without context")
		results = nil
	}
	for _, r := range results {
		s.logger.Debug().Str("source", r.SourceName).Str("page", r.PageOrRow).Float64("score", r.Score).Msg("Retrieved chunk")
	}

	answer := s.synth.Synthesize(ctx, q, s.history, AssembleContext(results))
	if !answer.Degraded {
		s.history = append(s.history, models.Turn{Question: q, Answer: answer.Text, At: s.now()})
		s.evict()
	}
	return answer.Text
}

func (s *Session) evict() {
	if s.opts.MaxTurns <= 0 || len(s.history) <= s.opts.MaxTurns {
		return
	}
	drop := len(s.history) - s.opts.MaxTurns
	s.logger.Info().Int("evicted", drop).Int("max_turns", s.opts.MaxTurns).Msg("Evicted oldest turns from history")
	s.history = append([]models.Turn(nil), s.history[drop:]...)
}

// Reset forgets the conversation.
func (s *Session) Reset() {
	s.history = nil
	s.logger.Info().Msg("Chat history cleared")
}

// Turns returns a copy of the history.
func (s *Session) Turns() []models.Turn {
	return append([]models.Turn(nil), s.history...)
}

func (s *Session) State() State {
	if len(s.history) == 0 {
		return StateEmpty
	}
	return StateActive
}
