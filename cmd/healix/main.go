package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ternarybob/banner"

	"healix/internal/app"
	"healix/internal/config"
	"healix/internal/ingest"
	"healix/internal/logging"
	"healix/internal/tui"
	"healix/internal/workflows"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var (
		doIngest    = flag.Bool("ingest", false, "ingest documents from the data directory")
		clearDB     = flag.Bool("clear-db", false, "clear the vector index before anything else")
		doChat      = flag.Bool("chat", false, "start an interactive chat session")
		plain       = flag.Bool("plain", false, "use a line-based chat loop instead of the terminal UI")
		watch       = flag.Bool("watch", false, "re-ingest files as they change in the data directory")
		viaTemporal = flag.Bool("temporal", false, "run --ingest as a Temporal workflow")
		dataDir     = flag.String("data-dir", "", "directory containing source documents")
		configPath  = flag.String("config", "", "path to a TOML config file")
	)
	flag.Parse()

	if !*doIngest && !*clearDB && !*doChat && !*watch {
		flag.Usage()
		return
	}

	_ = godotenv.Load(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *doChat {
		banner.Print("HealixAI", version)
		if !*plain {
			// console output would tear the alt-screen UI
			cfg.Logging.Console = false
		}
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if *viaTemporal && *doIngest {
		if err := ingestWithTemporal(ctx, a, *clearDB); err != nil {
			log.Fatal(err)
		}
	} else {
		if *clearDB {
			if err := a.Pipeline.ClearIndex(ctx); err != nil {
				log.Fatal(err)
			}
			fmt.Println("Vector database cleared.")
		}
		if *doIngest {
			fmt.Printf("Ingesting documents from %s...\n", cfg.DataDir)
			rep, err := a.Pipeline.Ingest(ctx, cfg.DataDir)
			if line, ok := ingestOutcome(err, cfg.DataDir); ok {
				fmt.Println(line)
			} else if err != nil {
				log.Fatal(err)
			} else {
				fmt.Printf("Successfully indexed %d chunks.\n", rep.Indexed)
			}
		}
	}

	if *watch {
		go func() {
			if err := ingest.NewWatcher(a.Pipeline, 0, logger).Run(ctx, cfg.DataDir); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("dir", cfg.DataDir).Msg("Watcher stopped")
			}
		}()
		fmt.Printf("Watching %s for changes...\n", cfg.DataDir)
	}

	switch {
	case *doChat && *plain:
		err = runPlain(ctx, os.Stdin, os.Stdout, a.NewSession())
	case *doChat:
		err = tui.Run(ctx, a.NewSession())
	case *watch:
		<-ctx.Done()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// ingestWithTemporal hands ingestion to the worker and waits for its report.
func ingestWithTemporal(ctx context.Context, a *app.App, clearFirst bool) error {
	c, err := a.DialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := a.Config
	we, err := workflows.StartCorpusIngest(ctx, c, cfg.Temporal.TaskQueue, workflows.InputFromConfig(cfg, clearFirst))
	if workflows.IsAlreadyRunning(err) {
		fmt.Println("Ingestion is already running.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("start ingest workflow: %w", err)
	}
	fmt.Printf("Ingesting documents from %s (workflow %s)...\n", cfg.DataDir, we.GetID())

	var rep ingest.Report
	if err := we.Get(ctx, &rep); err != nil {
		a.Logger.Error().Err(err).Msg("Ingest workflow failed")
		if line, ok := ingestOutcome(err, cfg.DataDir); ok {
			fmt.Println(line)
			return nil
		}
		return fmt.Errorf("wait for ingest workflow: %w", err)
	}
	fmt.Printf("Successfully indexed %d chunks.\n", rep.Indexed)
	return nil
}
