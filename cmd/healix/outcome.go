package main

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"healix/internal/util"
	"healix/internal/workflows"
)

// ingestOutcome turns an ingestion that indexed nothing into the line shown to the user.
// ok is false for errors that are not about the corpus itself.
func ingestOutcome(err error, dir string) (line string, ok bool) {
	var appErr *temporal.ApplicationError
	hasType := func(t string) bool {
		return errors.As(err, &appErr) && appErr.Type() == t
	}
	switch {
	case errors.Is(err, util.ErrNoDocuments), hasType(workflows.ErrTypeNoDocuments):
		return fmt.Sprintf("No documents found in %s.", dir), true
	case errors.Is(err, util.ErrAllFailed), hasType(workflows.ErrTypeAllFailed):
		return fmt.Sprintf("Documents in %s failed to load. See the log for each file's error.", dir), true
	}
	return "", false
}
