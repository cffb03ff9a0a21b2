package corpus

import (
	"path/filepath"
	"strings"

	"healix/internal/models"
)

// Classify derives document type and authority rank from a filename.
func Classify(filename string) (models.DocType, models.Rank) {
	base := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.Contains(base, "guideline"):
		return models.DocTypeGuideline, models.RankGuideline
	case strings.Contains(base, "textbook"):
		return models.DocTypeTextbook, models.RankTextbook
	case strings.Contains(base, "faq"), filepath.Ext(base) == ".csv":
		return models.DocTypeFAQ, models.RankFAQ
	default:
		return models.DocTypeTextbook, models.RankTextbook
	}
}

// ExtractorKind enumerates the supported extraction strategies.
type ExtractorKind int

const (
	// Paginated extractors emit one unit per page.
	Paginated ExtractorKind = iota + 1
	// RowBased extractors emit one unit per data row.
	RowBased
	// Sectioned extractors emit one unit per top-level heading section.
	Sectioned
)

func (k ExtractorKind) String() string {
	switch k {
	case Paginated:
		return "paginated"
	case RowBased:
		return "row"
	case Sectioned:
		return "section"
	default:
		return "unknown"
	}
}

// ExtractorFor selects the extractor for a file; ok is false for unsupported formats.
func ExtractorFor(filename string) (ExtractorKind, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return Paginated, true
	case ".csv":
		return RowBased, true
	case ".md", ".markdown", ".html", ".htm":
		return Sectioned, true
	default:
		return 0, false
	}
}

// Supported reports whether filename has an extension the loader can read.
func Supported(filename string) bool {
	_, ok := ExtractorFor(filename)
	return ok
}
