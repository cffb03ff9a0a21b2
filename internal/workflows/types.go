package workflows

type CorpusIngestInput struct {
	Dir               string `json:"dir"`
	BatchSize         int    `json:"batch_size"`
	RetryDelaySeconds int    `json:"retry_delay_seconds"`
	ClearFirst        bool   `json:"clear_first,omitempty"`
}

type CorpusIngestProgress struct {
	Dir          string            `json:"dir"`
	Total        int               `json:"total"`
	Done         int               `json:"done"`
	Failed       int               `json:"failed"`
	PerFile      map[string]string `json:"per_file"`
	ChunksStored int               `json:"chunks_indexed"`
	Removed      int               `json:"removed"`
	Stage        string            `json:"stage"`
}
