package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/worker"

	"healix/internal/app"
	"healix/internal/config"
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

	c, err := a.DialTemporal()
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := a.NewWorker(c)
	logger.Info().Str("address", cfg.Temporal.Address).Str("queue", cfg.Temporal.TaskQueue).Str("backend", cfg.Index.Backend).Msg("healix worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
