package activities

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"go.temporal.io/sdk/temporal"

	"healix/internal/corpus"
	"healix/internal/index"
	"healix/internal/ingest"
	"healix/internal/util"
)

// ErrTypeLoadFailed marks a file that cannot be extracted. Retrying will not help.
const ErrTypeLoadFailed = "LoadFailed"

type Activities struct {
	pipeline *ingest.Pipeline
	stateDir string
	logger   arbor.ILogger
}

func New(pipeline *ingest.Pipeline, stateDir string, logger arbor.ILogger) *Activities {
	return &Activities{pipeline: pipeline, stateDir: stateDir, logger: logger}
}

func (a *Activities) ListSourceFilesActivity(_ context.Context, in ListSourceFilesInput) (ListSourceFilesOutput, error) {
	paths, skipped, err := corpus.ListFiles(in.Dir)
	if err != nil {
		return ListSourceFilesOutput{}, err
	}
	return ListSourceFilesOutput{Paths: paths, Skipped: skipped}, nil
}

// IndexFileActivity loads, chunks and indexes one file inside the worker and hands back
// only its counts, so document text never passes through workflow history.
func (a *Activities) IndexFileActivity(ctx context.Context, in IndexFileInput) (ingest.Report, error) {
	p := a.pipeline.WithBatch(index.BatchOptions{
		Size:       in.BatchSize,
		RetryDelay: time.Duration(in.RetryDelaySeconds) * time.Second,
	})
	rep, err := p.IngestFile(ctx, in.Path)
	if err != nil {
		if errors.Is(err, util.ErrIngestion) || errors.Is(err, util.ErrUnsupportedFormat) {
			a.logger.Error().Err(err).Str("file", filepath.Base(in.Path)).Msg("Error loading file")
			return rep, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeLoadFailed, err)
		}
		return rep, err
	}
	return rep, nil
}

// PruneSourcesActivity drops indexed sources that are no longer in the data dir.
func (a *Activities) PruneSourcesActivity(ctx context.Context, in PruneSourcesInput) (PruneSourcesOutput, error) {
	removed, err := a.pipeline.Prune(ctx, in.Keep)
	if err != nil {
		return PruneSourcesOutput{}, err
	}
	return PruneSourcesOutput{Removed: removed}, nil
}

func (a *Activities) ClearIndexActivity(ctx context.Context, _ ClearIndexInput) error {
	return a.pipeline.ClearIndex(ctx)
}

func (a *Activities) WriteIngestSummaryActivity(_ context.Context, in WriteIngestSummaryInput) error {
	if a.stateDir == "" {
		return nil
	}
	return ingest.WriteSummary(a.stateDir, in.Report)
}
