package workflows

import (
	"context"
	"errors"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"

	"healix/internal/config"
)

// CorpusIngestWorkflowID is fixed so only one corpus ingestion runs at a time.
const CorpusIngestWorkflowID = "healix-ingest"

// Starter is the subset of the Temporal client used to launch ingestion.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
}

func InputFromConfig(cfg config.Config, clearFirst bool) CorpusIngestInput {
	return CorpusIngestInput{
		Dir:               cfg.DataDir,
		BatchSize:         cfg.Index.BatchSize,
		RetryDelaySeconds: int(cfg.Index.RetryDelayDuration() / time.Second),
		ClearFirst:        clearFirst,
	}
}

func StartCorpusIngest(ctx context.Context, c Starter, taskQueue string, in CorpusIngestInput) (tclient.WorkflowRun, error) {
	return c.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       CorpusIngestWorkflowID,
		TaskQueue:                                taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, CorpusIngestWorkflow, in)
}

// IsAlreadyRunning reports whether err means an ingestion workflow is still open.
func IsAlreadyRunning(err error) bool {
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	return errors.As(err, &started)
}
