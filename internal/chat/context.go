package chat

import (
	"fmt"
	"strings"

	"healix/internal/models"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// AssembleContext renders retrieved chunks, in order, as attributed blocks for the answer prompt.
func AssembleContext(results []models.ScoredChunk) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Source: %s (Page %s) [Type: %s, Rank: %d]\nContent: %s\n",
			r.SourceName, r.PageOrRow, r.DocType, r.Rank, lineBreaks.Replace(r.Content)))
	}
	return strings.Join(blocks, "\n\n")
}
