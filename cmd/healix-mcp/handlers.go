package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"healix/internal/models"
)

const (
	maxQuestionLen = 4000
	maxSearchLimit = 20
)

type conversation interface {
	Ask(ctx context.Context, q string) string
	Reset()
}

type retriever interface {
	Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error)
}

// sessionMu serialises tool calls against the shared conversation.
var sessionMu sync.Mutex

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(s)}}
}

func handleAsk(conv conversation, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return textResult("Error: question parameter is required"), nil
		}
		if utf8.RuneCountInString(question) > maxQuestionLen {
			return textResult(fmt.Sprintf("Error: question must be at most %d characters", maxQuestionLen)), nil
		}
		sessionMu.Lock()
		answer := conv.Ask(ctx, question)
		sessionMu.Unlock()
		logger.Debug().Int("question_len", len(question)).Msg("MCP ask answered")
		return textResult(answer), nil
	}
}

func handleSearch(r retriever, defaultK int, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textResult("Error: query parameter is required"), nil
		}
		limit := request.GetInt("limit", defaultK)
		if limit <= 0 {
			limit = defaultK
		}
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
		results, err := r.Query(ctx, query, limit)
		if err != nil {
			logger.Error().Err(err).Msg("MCP search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}
		return textResult(formatResults(query, results)), nil
	}
}

func handleClearHistory(conv conversation) server.ToolHandlerFunc {
	return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionMu.Lock()
		conv.Reset()
		sessionMu.Unlock()
		return textResult("History cleared."), nil
	}
}

func formatResults(query string, results []models.ScoredChunk) string {
	if len(results) == 0 {
		return fmt.Sprintf("No passages found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n## %d. %s (Page %s)\n", i+1, r.Chunk.SourceName, r.Chunk.PageOrRow)
		fmt.Fprintf(&b, "Type: %s, Rank: %d, Score: %.3f\n\n", r.Chunk.DocType, r.Chunk.Rank, r.Score)
		b.WriteString(strings.TrimSpace(r.Chunk.Content))
		b.WriteString("\n")
	}
	return b.String()
}
