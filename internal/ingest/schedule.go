package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Scheduler re-runs ingestion on a cron expression. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	spec    string
	cron    *cron.Cron
	run     func(ctx context.Context) error
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  arbor.ILogger
}

func NewScheduler(spec string, run func(ctx context.Context) error, logger arbor.ILogger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{spec: spec, cron: cron.New(), run: run, ctx: ctx, cancel: cancel, logger: logger}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule ingest %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Str("schedule", s.spec).Msg("Scheduled ingestion enabled")
}

// Stop cancels a run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("schedule", s.spec).Msg("Previous scheduled ingestion still running; skipping")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.run(s.ctx); err != nil {
		s.logger.Error().Err(err).Dur("took", time.Since(start)).Msg("Scheduled ingestion failed")
		return
	}
	s.logger.Info().Dur("took", time.Since(start)).Msg("Scheduled ingestion finished")
}
