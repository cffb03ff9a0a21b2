package activities

import "healix/internal/ingest"

type ListSourceFilesInput struct {
	Dir string `json:"dir"`
}

type ListSourceFilesOutput struct {
	Paths   []string `json:"paths"`
	Skipped []string `json:"skipped,omitempty"`
}

type IndexFileInput struct {
	Path              string `json:"path"`
	BatchSize         int    `json:"batch_size"`
	RetryDelaySeconds int    `json:"retry_delay_seconds"`
}

type PruneSourcesInput struct {
	Keep []string `json:"keep"`
}

type PruneSourcesOutput struct {
	Removed []string `json:"removed,omitempty"`
}

type ClearIndexInput struct{}

type WriteIngestSummaryInput struct {
	Report ingest.Report `json:"report"`
}
