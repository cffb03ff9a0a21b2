package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"healix/internal/app"
	"healix/internal/config"
	"healix/internal/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load(os.Getenv("HEALIX_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol
	cfg.Logging.Console = false
	if cfg.Logging.File == "" {
		cfg.Logging.File = "logs/healix-mcp.log"
	}
	logger := logging.New(cfg.Logging)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise HealixAI")
	}
	defer a.Close()

	mcpServer := server.NewMCPServer("healix", version, server.WithToolCapabilities(true))
	session := a.NewSession()
	mcpServer.AddTool(createAskTool(), handleAsk(session, logger))
	mcpServer.AddTool(createSearchTool(), handleSearch(a.Index, cfg.Index.TopK, logger))
	mcpServer.AddTool(createClearHistoryTool(), handleClearHistory(session))

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
