package workflows

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"healix/internal/activities"
	"healix/internal/ingest"
	"healix/internal/models"
	"healix/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

// Application error types a failed CorpusIngestWorkflow reports.
const (
	ErrTypeNoDocuments = "NoDocuments"
	ErrTypeAllFailed   = "AllFailed"
	ErrTypeIngest      = "IngestFailed"
)

// CorpusIngestWorkflow re-indexes every supported file under input.Dir and drops sources
// that are no longer there. Per-file and per-batch failures are recorded in the returned
// report; only an empty or wholly unreadable corpus fails the workflow.
func CorpusIngestWorkflow(ctx workflow.Context, input CorpusIngestInput) (ingest.Report, error) {
	progress := CorpusIngestProgress{Dir: input.Dir, PerFile: map[string]string{}, Stage: "listing"}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (CorpusIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return ingest.Report{}, err
	}
	rep := ingest.Report{Dir: input.Dir, StartedAt: workflow.Now(ctx)}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if input.ClearFirst {
		if err := workflow.ExecuteActivity(ctx, "ClearIndexActivity", activities.ClearIndexInput{}).Get(ctx, nil); err != nil {
			return rep, err
		}
	}

	var listOut activities.ListSourceFilesOutput
	if err := workflow.ExecuteActivity(ctx, "ListSourceFilesActivity", activities.ListSourceFilesInput{Dir: input.Dir}).Get(ctx, &listOut); err != nil {
		return rep, err
	}
	rep.Files, rep.Skipped = len(listOut.Paths), listOut.Skipped
	progress.Total = len(listOut.Paths)
	if rep.Files == 0 {
		return finish(ctx, rep, fmt.Errorf("%w in %s", util.ErrNoDocuments, input.Dir))
	}

	// Each file is loaded, chunked and written inside one activity, so only counts
	// travel through history.
	indexCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeLoadFailed},
		},
	})

	progress.Stage = "indexing"
	names := make([]string, 0, len(listOut.Paths))
	for _, path := range listOut.Paths {
		name := filepath.Base(path)
		names = append(names, name)
		progress.PerFile[name] = "indexing"
		var fileRep ingest.Report
		in := activities.IndexFileInput{Path: path, BatchSize: input.BatchSize, RetryDelaySeconds: input.RetryDelaySeconds}
		if err := workflow.ExecuteActivity(indexCtx, "IndexFileActivity", in).Get(ctx, &fileRep); err != nil {
			progress.Failed++
			progress.PerFile[name] = "failed"
			rep.Failures = append(rep.Failures, models.Failure{Item: name, Stage: failedStage(err), Reason: err.Error()})
			continue
		}
		rep.Loaded++
		rep.Documents += fileRep.Documents
		rep.Chunks += fileRep.Chunks
		rep.Indexed += fileRep.Indexed
		rep.Failures = append(rep.Failures, fileRep.Failures...)
		progress.Done++
		progress.ChunksStored += fileRep.Indexed
		progress.PerFile[name] = "indexed"
	}
	if rep.Loaded == 0 {
		return finish(ctx, rep, fmt.Errorf("%w: %d files", util.ErrAllFailed, rep.Files))
	}
	if rep.Documents == 0 {
		return finish(ctx, rep, fmt.Errorf("%w: no text in %d files", util.ErrNoDocuments, rep.Loaded))
	}

	progress.Stage = "pruning"
	var pruneOut activities.PruneSourcesOutput
	if err := workflow.ExecuteActivity(ctx, "PruneSourcesActivity", activities.PruneSourcesInput{Keep: names}).Get(ctx, &pruneOut); err != nil {
		rep.Failures = append(rep.Failures, models.Failure{Item: input.Dir, Stage: "prune", Reason: err.Error()})
	}
	rep.Removed = pruneOut.Removed
	progress.Removed = len(pruneOut.Removed)
	progress.Stage = "done"
	return finish(ctx, rep, nil)
}

func failedStage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == activities.ErrTypeLoadFailed {
		return "load"
	}
	return "index"
}

// finish stamps and persists the report. A failed summary write does not fail the run.
func finish(ctx workflow.Context, rep ingest.Report, runErr error) (ingest.Report, error) {
	rep.FinishedAt = workflow.Now(ctx)
	_ = workflow.ExecuteActivity(ctx, "WriteIngestSummaryActivity", activities.WriteIngestSummaryInput{Report: rep}).Get(ctx, nil)
	if runErr != nil {
		errType := ErrTypeIngest
		switch {
		case errors.Is(runErr, util.ErrNoDocuments):
			errType = ErrTypeNoDocuments
		case errors.Is(runErr, util.ErrAllFailed):
			errType = ErrTypeAllFailed
		}
		return rep, temporal.NewNonRetryableApplicationError(runErr.Error(), errType, runErr)
	}
	return rep, nil
}
