package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"healix/internal/api"
	"healix/internal/app"
	"healix/internal/config"
	"healix/internal/ingest"
	"healix/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.Logging)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	var starter api.WorkflowStarter
	if cfg.Temporal.Enabled {
		c, err := a.DialTemporal()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()
		starter = c

		// A badger index is locked by one process, so the worker has to live here.
		if cfg.Index.Backend != "pgvector" {
			w := a.NewWorker(c)
			if err := w.Start(); err != nil {
				log.Fatal(err)
			}
			defer w.Stop()
			logger.Info().Str("queue", cfg.Temporal.TaskQueue).Msg("Embedded ingest worker started")
		}
	}

	h := api.NewServer(cfg, a.NewSession(), a.Pipeline, starter, logger)
	if cfg.Ingest.Schedule != "" {
		sched, err := ingest.NewScheduler(cfg.Ingest.Schedule, func(ctx context.Context) error {
			_, err := h.TriggerIngest(ctx, false)
			return err
		}, logger)
		if err != nil {
			log.Fatal(err)
		}
		sched.Start()
		defer sched.Stop()
	}

	logger.Info().Str("addr", cfg.API.Addr).Str("backend", cfg.Index.Backend).Bool("temporal", cfg.Temporal.Enabled).Msg("healix api listening")
	if err := http.ListenAndServe(cfg.API.Addr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
