package index

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/util"
)

const (
	DefaultBatchSize  = 32
	DefaultRetryDelay = 5 * time.Second
)

// Upserter is the write side of Index.
type Upserter interface {
	Upsert(ctx context.Context, batch []models.Chunk) error
}

type BatchOptions struct {
	Size       int
	RetryDelay time.Duration
	Logger     arbor.ILogger
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Batches cuts chunks into consecutive slices of at most size.
func Batches(chunks []models.Chunk, size int) [][]models.Chunk {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]models.Chunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		out = append(out, chunks[start:end])
	}
	return out
}

// UpsertBatches writes chunks in order. A failed batch is retried once after
// RetryDelay; a batch that fails twice is recorded as lost and the rest continue.
func UpsertBatches(ctx context.Context, up Upserter, chunks []models.Chunk, opts BatchOptions) models.Partial[models.Chunk] {
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	logger := opts.Logger
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}

	var res models.Partial[models.Chunk]
	batches := Batches(chunks, opts.Size)
	for i, batch := range batches {
		label := fmt.Sprintf("batch %d/%d", i+1, len(batches))
		logger.Info().Msgf("Batch %d/%d (%d chunks)", i+1, len(batches), len(batch))

		err := up.Upsert(ctx, batch)
		if err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Str("batch", label).Dur("retry_in", opts.RetryDelay).Msg("Batch failed, retrying once")
			if serr := opts.Sleep(ctx, opts.RetryDelay); serr != nil {
				err = serr
			} else {
				err = up.Upsert(ctx, batch)
			}
		}
		if err != nil {
			lost := fmt.Errorf("%s: %w: %w", label, util.ErrIndexWrite, err)
			logger.Error().Err(lost).Int("chunks", len(batch)).Msg("Batch lost")
			res.Fail(label, "index", lost)
			continue
		}
		res.OK = append(res.OK, batch...)
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
