package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ternarybob/arbor"

	"healix/internal/models"
	"healix/internal/normalize"
	"healix/internal/util"
)

type Loader struct {
	normalizer *normalize.Normalizer
	extractors map[ExtractorKind]Extractor
	logger     arbor.ILogger
}

type Option func(*Loader)

// WithExtractor replaces the extractor used for kind.
func WithExtractor(kind ExtractorKind, e Extractor) Option {
	return func(l *Loader) { l.extractors[kind] = e }
}

func NewLoader(n *normalize.Normalizer, logger arbor.ILogger, opts ...Option) *Loader {
	l := &Loader{
		normalizer: n,
		extractors: map[ExtractorKind]Extractor{
			Paginated: PDFExtractor{},
			RowBased:  CSVExtractor{},
			Sectioned: MarkupExtractor{},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadResult summarises one directory scan. Files counts supported files only
// and Names holds their base names, loaded or not.
type LoadResult struct {
	Files   int      `json:"files"`
	Names   []string `json:"names,omitempty"`
	Loaded  int      `json:"loaded"`
	Skipped []string `json:"skipped,omitempty"`
	models.Partial[models.SourceDocument]
}

// ListFiles returns supported files directly under dir in lexical order, plus the names it skipped.
func ListFiles(dir string) ([]string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read data dir: %w", err)
	}
	var paths, skipped []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !Supported(e.Name()) {
			skipped = append(skipped, e.Name())
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, skipped, nil
}

// Load reads every supported file in dir. Per-file failures are recorded and skipped.
func (l *Loader) Load(ctx context.Context, dir string) (LoadResult, error) {
	paths, skipped, err := ListFiles(dir)
	if err != nil {
		return LoadResult{}, fmt.Errorf("%w: %w", util.ErrIngestion, err)
	}
	res := LoadResult{Files: len(paths), Skipped: skipped}
	for _, path := range paths {
		res.Names = append(res.Names, filepath.Base(path))
	}
	for _, name := range skipped {
		l.logger.Debug().Str("file", name).Msg("Skipping unsupported file")
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		docs, err := l.LoadFile(ctx, path)
		if err != nil {
			l.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("Error loading file")
			res.Fail(filepath.Base(path), "load", err)
			continue
		}
		res.Loaded++
		res.OK = append(res.OK, docs...)
	}
	return res, nil
}

// LoadFile extracts, normalizes and classifies a single file.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]models.SourceDocument, error) {
	name := filepath.Base(path)
	kind, ok := ExtractorFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrUnsupportedFormat, name)
	}
	extractor, ok := l.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no %s extractor", util.ErrUnsupportedFormat, kind)
	}
	units, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", util.ErrIngestion, name, err)
	}

	docType, rank := Classify(name)
	docs := make([]models.SourceDocument, 0, len(units))
	for _, u := range units {
		docs = append(docs, models.SourceDocument{
			Content: l.normalizer.Normalize(u.Text),
			Provenance: models.Provenance{
				SourceName: name,
				PageOrRow:  u.PageOrRow,
				DocType:    docType,
				Rank:       rank,
			},
		})
	}
	l.logger.Info().Str("file", name).Int("units", len(docs)).Str("type", string(docType)).Msg("Loaded pages/rows")
	return docs, nil
}
