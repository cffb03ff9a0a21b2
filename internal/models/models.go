package models

import "time"

type DocType string

const (
	DocTypeGuideline DocType = "guideline"
	DocTypeTextbook  DocType = "textbook"
	DocTypeFAQ       DocType = "faq"
)

// Rank orders document authority; 1 is the most authoritative.
type Rank int

const (
	RankGuideline Rank = 1
	RankTextbook  Rank = 2
	RankFAQ       Rank = 3
)

// PageNotApplicable is stamped on units without a natural page index.
const PageNotApplicable = "N/A"

// Provenance is the attribution carried by every document and chunk.
// It is a value type so copying a chunk never aliases its parent's metadata.
type Provenance struct {
	SourceName string  `json:"source_name"`
	PageOrRow  string  `json:"page_or_row"`
	DocType    DocType `json:"doc_type"`
	Rank       Rank    `json:"rank"`
}

// SourceDocument is one PDF page or one CSV row after normalization.
type SourceDocument struct {
	Content string `json:"content"`
	Provenance
}

type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	Provenance
}

type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Failure describes one item that could not be processed.
type Failure struct {
	Item   string `json:"item"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Partial carries the items that succeeded alongside per-item failures.
type Partial[T any] struct {
	OK       []T       `json:"ok"`
	Failures []Failure `json:"failures,omitempty"`
}

func (p *Partial[T]) Fail(item, stage string, err error) {
	p.Failures = append(p.Failures, Failure{Item: item, Stage: stage, Reason: err.Error()})
}
