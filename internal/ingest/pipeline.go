package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"healix/internal/chunker"
	"healix/internal/corpus"
	"healix/internal/index"
	"healix/internal/models"
	"healix/internal/util"
)

// SummaryFile is written under the state dir after every run.
const SummaryFile = "ingest_summary.json"

// Indexer is the part of index.Index the pipeline writes through.
type Indexer interface {
	index.Upserter
	Clear(ctx context.Context) error
	DeleteSource(ctx context.Context, sourceName string) error
	Sources(ctx context.Context) ([]string, error)
}

type Report struct {
	Dir        string           `json:"dir"`
	Files      int              `json:"files"`
	Loaded     int              `json:"loaded"`
	Documents  int              `json:"documents"`
	Chunks     int              `json:"chunks"`
	Indexed    int              `json:"chunks_indexed"`
	Skipped    []string         `json:"skipped,omitempty"`
	Removed    []string         `json:"removed,omitempty"`
	Failures   []models.Failure `json:"failures,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

type Pipeline struct {
	loader   *corpus.Loader
	splitter *chunker.Splitter
	index    Indexer
	batch    index.BatchOptions
	stateDir string
	logger   arbor.ILogger
}

func NewPipeline(loader *corpus.Loader, splitter *chunker.Splitter, ix Indexer, batch index.BatchOptions, stateDir string, logger arbor.ILogger) *Pipeline {
	if batch.Logger == nil {
		batch.Logger = logger
	}
	return &Pipeline{loader: loader, splitter: splitter, index: ix, batch: batch, stateDir: stateDir, logger: logger}
}

// WithBatch returns a copy of p that writes with opts. A nil opts.Logger keeps p's logger.
func (p *Pipeline) WithBatch(opts index.BatchOptions) *Pipeline {
	cp := *p
	if opts.Logger == nil {
		opts.Logger = p.batch.Logger
	}
	cp.batch = opts
	return &cp
}

// Ingest loads, chunks and indexes every supported file in dir. Chunks of files that
// loaded again are replaced and chunks of files no longer in dir are dropped; a file
// that fails to load keeps what was indexed for it before.
// It fails with util.ErrNoDocuments when nothing loadable exists and util.ErrAllFailed when every file failed.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (Report, error) {
	rep := Report{Dir: dir, StartedAt: time.Now().UTC()}
	p.logger.Info().Str("dir", dir).Msg("Ingesting documents")

	loaded, err := p.loader.Load(ctx, dir)
	rep.Files, rep.Loaded, rep.Skipped = loaded.Files, loaded.Loaded, loaded.Skipped
	rep.Failures = append(rep.Failures, loaded.Failures...)
	if err != nil {
		return p.finish(rep, err)
	}
	if rep.Files == 0 {
		return p.finish(rep, fmt.Errorf("%w in %s", util.ErrNoDocuments, dir))
	}
	if rep.Loaded == 0 {
		return p.finish(rep, fmt.Errorf("%w: %d files", util.ErrAllFailed, rep.Files))
	}
	rep.Documents = len(loaded.OK)
	if rep.Documents == 0 {
		return p.finish(rep, fmt.Errorf("%w: no text in %d files", util.ErrNoDocuments, rep.Loaded))
	}

	removed, err := p.supersede(ctx, loaded)
	rep.Removed = removed
	if err != nil {
		return p.finish(rep, err)
	}

	chunks := p.splitter.Chunk(loaded.OK)
	rep.Chunks = len(chunks)
	p.logger.Info().Int("documents", rep.Documents).Int("chunks", rep.Chunks).Msg("Split documents into chunks")

	written := index.UpsertBatches(ctx, p.index, chunks, p.batch)
	rep.Indexed = len(written.OK)
	rep.Failures = append(rep.Failures, written.Failures...)
	return p.finish(rep, ctx.Err())
}

// IngestFile re-indexes one file, replacing whatever was indexed for it before.
// When the file cannot be loaded its previous chunks stay in place.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Report, error) {
	name := filepath.Base(path)
	rep := Report{Dir: filepath.Dir(path), Files: 1, StartedAt: time.Now().UTC()}
	docs, err := p.loader.LoadFile(ctx, path)
	if err != nil {
		rep.Failures = append(rep.Failures, models.Failure{Item: name, Stage: "load", Reason: err.Error()})
		return rep, err
	}
	if err := p.index.DeleteSource(ctx, name); err != nil {
		return rep, err
	}
	rep.Loaded, rep.Documents = 1, len(docs)
	chunks := p.splitter.Chunk(docs)
	rep.Chunks = len(chunks)
	written := index.UpsertBatches(ctx, p.index, chunks, p.batch)
	rep.Indexed = len(written.OK)
	for _, f := range written.Failures {
		f.Item = name + " " + f.Item
		rep.Failures = append(rep.Failures, f)
	}
	rep.FinishedAt = time.Now().UTC()
	p.logger.Info().Str("file", name).Int("chunks_indexed", rep.Indexed).Msg("Re-indexed file")
	return rep, nil
}

// Prune drops the chunks of every indexed source not named in keep and returns the dropped names.
func (p *Pipeline) Prune(ctx context.Context, keep []string) ([]string, error) {
	indexed, err := p.index.Sources(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(keep))
	for _, name := range keep {
		want[name] = true
	}
	var removed []string
	for _, name := range indexed {
		if want[name] {
			continue
		}
		if err := p.index.DeleteSource(ctx, name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
		p.logger.Info().Str("file", name).Msg("Dropped chunks of a file no longer in the data dir")
	}
	return removed, nil
}

// supersede clears the previous chunks of every file that loaded in this run and
// prunes files that are gone.
func (p *Pipeline) supersede(ctx context.Context, loaded corpus.LoadResult) ([]string, error) {
	failed := make(map[string]bool, len(loaded.Failures))
	for _, f := range loaded.Failures {
		failed[f.Item] = true
	}
	for _, name := range loaded.Names {
		if failed[name] {
			p.logger.Warn().Str("file", name).Msg("Keeping previously indexed chunks of a file that failed to load")
			continue
		}
		if err := p.index.DeleteSource(ctx, name); err != nil {
			return nil, err
		}
	}
	return p.Prune(ctx, loaded.Names)
}

// RemoveFile drops a deleted file's chunks from the index.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if err := p.index.DeleteSource(ctx, name); err != nil {
		return err
	}
	p.logger.Info().Str("file", name).Msg("Removed file from index")
	return nil
}

// ClearIndex empties the index. Safe to call on an empty index.
func (p *Pipeline) ClearIndex(ctx context.Context) error {
	return p.index.Clear(ctx)
}

func (p *Pipeline) finish(rep Report, err error) (Report, error) {
	rep.FinishedAt = time.Now().UTC()
	if err != nil {
		p.logger.Warn().Err(err).Int("files", rep.Files).Int("loaded", rep.Loaded).Msg("Ingestion finished without indexing")
	} else {
		p.logger.Info().Int("files", rep.Files).Int("loaded", rep.Loaded).Int("chunks_indexed", rep.Indexed).Int("failures", len(rep.Failures)).Msg("Ingestion finished")
	}
	if p.stateDir != "" {
		if werr := WriteSummary(p.stateDir, rep); werr != nil {
			p.logger.Warn().Err(werr).Msg("Failed to write ingest summary")
		}
	}
	return rep, err
}

// WriteSummary atomically writes rep as JSON to stateDir/ingest_summary.json.
func WriteSummary(stateDir string, rep Report) error {
	return util.WriteJSONAtomic(filepath.Join(stateDir, SummaryFile), rep)
}
