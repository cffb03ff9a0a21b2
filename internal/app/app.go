package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"healix/internal/activities"
	"healix/internal/chat"
	"healix/internal/chunker"
	"healix/internal/config"
	"healix/internal/corpus"
	"healix/internal/index"
	"healix/internal/ingest"
	"healix/internal/normalize"
	"healix/internal/providers"
	"healix/internal/storage"
	"healix/internal/workflows"
)

// App holds the components shared by the CLI, the API server and the worker.
type App struct {
	Config    config.Config
	Logger    arbor.ILogger
	Providers *providers.Manager
	Index     *index.Index
	Loader    *corpus.Loader
	Splitter  *chunker.Splitter
	Pipeline  *ingest.Pipeline
}

func New(ctx context.Context, cfg config.Config, logger arbor.ILogger) (*App, error) {
	pm, err := providers.NewManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init providers: %w", err)
	}
	logger.Info().Str("llm", strings.Join(pm.LLMNames(), ",")).Str("embed", strings.Join(pm.EmbedNames(), ",")).Msg("Providers configured")

	ix, err := index.Open(ctx, cfg.Index, pm, logger)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if pg, ok := ix.Store().(*index.PGStore); ok {
		pm.SetAuditor(storage.NewLLMAuditRepo(pg.DB()))
	}

	loader := corpus.NewLoader(normalize.New(cfg.Normalize.Replace...), logger)
	splitter := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	pipeline := ingest.NewPipeline(loader, splitter, ix, index.BatchOptions{
		Size:       cfg.Index.BatchSize,
		RetryDelay: cfg.Index.RetryDelayDuration(),
		Logger:     logger,
	}, cfg.StateDir, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Providers: pm,
		Index:     ix,
		Loader:    loader,
		Splitter:  splitter,
		Pipeline:  pipeline,
	}, nil
}

// NewSession starts a fresh conversation over the index.
func (a *App) NewSession() *chat.Session {
	return chat.NewSession(a.Providers, a.Index, chat.Options{
		K:           a.Config.Index.TopK,
		MaxTurns:    a.Config.Chat.MaxTurns,
		Temperature: a.Config.Providers.Temperature,
	}, a.Logger)
}

// DialTemporal connects to the configured Temporal frontend.
func (a *App) DialTemporal() (tclient.Client, error) {
	c, err := tclient.Dial(tclient.Options{HostPort: a.Config.Temporal.Address})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", a.Config.Temporal.Address, err)
	}
	return c, nil
}

// NewWorker builds a Temporal worker hosting the ingestion workflow and its activities.
func (a *App) NewWorker(c tclient.Client) worker.Worker {
	w := worker.New(c, a.Config.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Pipeline, a.Config.StateDir, a.Logger))
	return w
}

func (a *App) Close() error {
	if a.Index != nil {
		return a.Index.Close()
	}
	return nil
}
