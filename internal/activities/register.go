package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListSourceFilesActivity)
	w.RegisterActivity(a.IndexFileActivity)
	w.RegisterActivity(a.PruneSourcesActivity)
	w.RegisterActivity(a.ClearIndexActivity)
	w.RegisterActivity(a.WriteIngestSummaryActivity)
}
