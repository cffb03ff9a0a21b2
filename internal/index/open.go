package index

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"healix/internal/config"
	"healix/internal/providers"
)

// Open builds the Index on the configured backend.
func Open(ctx context.Context, cfg config.IndexConfig, embedder providers.EmbeddingProvider, logger arbor.ILogger) (*Index, error) {
	var (
		store VectorStore
		err   error
	)
	switch cfg.Backend {
	case "", "badger":
		store, err = OpenBadger(cfg.BadgerPath, logger)
	case "pgvector":
		store, err = OpenPG(ctx, cfg.PostgresURL, cfg.EmbedDim, logger)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.Backend).Msg("Index opened")
	return New(embedder, store, cfg.EmbedDim, logger), nil
}
