package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// MockProvider is a deterministic offline provider used for local runs and tests.
// Its embeddings hash word tokens so texts sharing vocabulary land close together.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 768
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(_ context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

var contextBlockRe = regexp.MustCompile(`Source: (.+?) \(Page (.+?)\) \[Type: (\w+), Rank: (\d+)\]\nContent: (.*)`)

type mockEvidence struct {
	source, page, docType, content string
	rank                           int
}

func (m *MockProvider) Generate(_ context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	question := lastUserMessage(req.Messages)
	op := strings.ToLower(req.Operation)
	switch {
	case strings.Contains(op, "rewrite"):
		return GenerateResponse{Text: question}, info, nil
	case strings.Contains(op, "answer"):
		return GenerateResponse{Text: mockAnswer(req.System)}, info, nil
	default:
		return GenerateResponse{Text: "Mock response."}, info, nil
	}
}

// mockAnswer answers from the highest-authority evidence and discloses disagreement across ranks.
func mockAnswer(system string) string {
	matches := contextBlockRe.FindAllStringSubmatch(system, -1)
	if len(matches) == 0 {
		return "The provided documents do not cover this question. Please consult a healthcare professional."
	}
	evidence := make([]mockEvidence, 0, len(matches))
	for _, mt := range matches {
		rank, _ := strconv.Atoi(mt[4])
		evidence = append(evidence, mockEvidence{source: mt[1], page: mt[2], docType: mt[3], rank: rank, content: strings.TrimSpace(mt[5])})
	}
	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].rank < evidence[j].rank })

	best := evidence[0]
	var b strings.Builder
	fmt.Fprintf(&b, "%s (Source: %s, Page: %s)", best.content, best.source, best.page)
	for _, e := range evidence[1:] {
		if e.rank != best.rank && e.content != best.content {
			fmt.Fprintf(&b, "\n\nNote: there is a conflict between sources. The %s states: %s (Source: %s, Page: %s). ", e.docType, e.content, e.source, e.page)
			fmt.Fprintf(&b, "The %s (Rank %d) takes priority over the %s (Rank %d).", best.docType, best.rank, e.docType, e.rank)
			break
		}
	}
	return b.String()
}

func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	tokens := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		tokens = []string{"empty"}
	}
	for _, tok := range tokens {
		h := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(h[:4]) % uint32(dim)
		sign := float32(1)
		if h[4]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
