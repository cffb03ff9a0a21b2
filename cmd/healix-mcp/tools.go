package main

import "github.com/mark3labs/mcp-go/mcp"

func createAskTool() mcp.Tool {
	return mcp.NewTool("ask_healix",
		mcp.WithDescription("Ask the HealixAI medical assistant a question. Answers cite the source document and page, and follow-up questions see earlier turns."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question in English or Arabic (max 4000 characters)"),
		),
	)
}

func createSearchTool() mcp.Tool {
	return mcp.NewTool("search_corpus",
		mcp.WithDescription("Return the indexed passages most similar to a query, with source, page and authority rank"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum passages to return (default: configured top_k, max: 20)"),
		),
	)
}

func createClearHistoryTool() mcp.Tool {
	return mcp.NewTool("clear_history",
		mcp.WithDescription("Forget earlier questions so the next one starts a fresh conversation"),
	)
}
