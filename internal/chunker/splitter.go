// Package chunker splits documents into overlapping, size-bounded chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"healix/internal/models"
	"healix/internal/util"
)

const (
	DefaultMaxSize = 3000
	DefaultOverlap = 200
)

// DefaultSeparators are tried in order, coarsest first. The empty separator splits into runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

type Splitter struct {
	MaxSize    int
	Overlap    int
	Separators []string
}

func New(maxSize, overlap int) *Splitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}
	return &Splitter{MaxSize: maxSize, Overlap: overlap, Separators: DefaultSeparators}
}

// Split breaks text into pieces of at most MaxSize runes, preferring the coarsest separator present.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.Separators)
}

// Chunk splits each document and copies its provenance onto every resulting chunk.
func (s *Splitter) Chunk(docs []models.SourceDocument) []models.Chunk {
	out := make([]models.Chunk, 0, len(docs))
	for _, doc := range docs {
		for i, part := range s.Split(doc.Content) {
			out = append(out, models.Chunk{
				ChunkID:    ChunkID(doc.Provenance, i, part),
				ChunkIndex: i,
				Content:    part,
				Provenance: doc.Provenance,
			})
		}
	}
	return out
}

// ChunkID is stable for identical provenance, position and content, so re-ingestion overwrites.
func ChunkID(p models.Provenance, index int, content string) string {
	contentHash := util.SHA256Hex([]byte(content))
	return util.SHA256Hex([]byte(fmt.Sprintf("%s:%s:%d:%s", p.SourceName, p.PageOrRow, index, contentHash)))
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.MaxSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, hardSplit(piece, s.MaxSize)...)
		} else {
			final = append(final, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge packs consecutive pieces into chunks, carrying trailing pieces forward as overlap.
func (s *Splitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.MaxSize && len(current) > 0 {
			if doc := join(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.Overlap || (total+n > s.MaxSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := join(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepingSeparator splits text on sep, attaching each separator to the start of the following piece.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hardSplit is the last resort for a piece with no separator and more than max runes.
func hardSplit(piece string, max int) []string {
	r := []rune(piece)
	var out []string
	for start := 0; start < len(r); start += max {
		end := min(start+max, len(r))
		if doc := strings.TrimSpace(string(r[start:end])); doc != "" {
			out = append(out, doc)
		}
	}
	return out
}

func join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
