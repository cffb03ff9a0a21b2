// Package normalize cleans extracted document text before chunking.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"healix/internal/util"
)

type Rule string

const (
	RuleURL      Rule = "url"
	RuleEmail    Rule = "email"
	RulePhone    Rule = "phone"
	RuleNumber   Rule = "number"
	RuleDigit    Rule = "digit"
	RuleCurrency Rule = "cur"
)

const (
	PlaceholderURL      = "<URL>"
	PlaceholderEmail    = "<EMAIL>"
	PlaceholderPhone    = "<PHONE>"
	PlaceholderNumber   = "<NUMBER>"
	PlaceholderDigit    = "0"
	PlaceholderCurrency = "<CUR>"

	// ReplacementGlyph stands in for bytes that are not valid UTF-8.
	ReplacementGlyph = "?"

	// MinLineLength is the trimmed length a non-empty line must exceed to survive.
	MinLineLength = 3
)

var (
	urlRe      = regexp.MustCompile(`(?i)\b(?:https?://|ftp://|www\.)[^\s<>"']+`)
	emailRe    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRe    = regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?\(?\b\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`)
	numberRe   = regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`)
	digitRe    = regexp.MustCompile(`\d`)
	currencyRe = regexp.MustCompile(`[$¢£¤¥֏؋৲৳৻૱௹฿៛₠-₿﷼﹩＄￠￡￥￦]`)

	horizontalSpaceRe = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	blankRunRe        = regexp.MustCompile(`\n{3,}`)
)

// asciiFallbacks covers runes that survive decomposition but have a conventional ASCII spelling.
var asciiFallbacks = map[rune]string{
	'‘': "'", '’': "'", '‚': "'", '‛': "'", '′': "'",
	'“': `"`, '”': `"`, '„': `"`, '‟': `"`, '″': `"`,
	'«': `"`, '»': `"`,
	'‐': "-", '‑': "-", '‒': "-", '–': "-", '—': "-", '―': "-", '−': "-",
	'…': "...",
	'•': "*", '·': "*",
	'⁄': "/",
	'×': "x",
	'±': "+-",
	'≤': "<=", '≥': ">=",
	'°': "deg",
	'µ': "u", 'μ': "u",
	'ß': "ss", 'æ': "ae", 'Æ': "AE", 'œ': "oe", 'Œ': "OE",
	'ø': "o", 'Ø': "O", 'ł': "l", 'Ł': "L", 'đ': "d", 'Đ': "D",
	'©': "(c)", '®': "(r)", '™': "(tm)",
}

type Normalizer struct {
	rules map[Rule]bool
}

// New returns a Normalizer applying the given placeholder rules. Unknown rule names are ignored.
func New(rules ...string) *Normalizer {
	n := &Normalizer{rules: make(map[Rule]bool, len(rules))}
	for _, r := range rules {
		n.rules[Rule(strings.ToLower(strings.TrimSpace(r)))] = true
	}
	return n
}

// Normalize never fails: invalid input degrades to replacement glyphs.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToValidUTF8(raw, ReplacementGlyph)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = util.SanitizeText(s)

	if n.rules[RuleCurrency] {
		s = currencyRe.ReplaceAllString(s, PlaceholderCurrency)
	}
	s = FoldASCII(s)
	if n.rules[RuleURL] {
		s = urlRe.ReplaceAllString(s, PlaceholderURL)
	}
	if n.rules[RuleEmail] {
		s = emailRe.ReplaceAllString(s, PlaceholderEmail)
	}
	if n.rules[RulePhone] {
		s = phoneRe.ReplaceAllString(s, PlaceholderPhone)
	}
	if n.rules[RuleNumber] {
		s = numberRe.ReplaceAllString(s, PlaceholderNumber)
	}
	if n.rules[RuleDigit] {
		s = digitRe.ReplaceAllString(s, PlaceholderDigit)
	}

	s = normalizeWhitespace(s)
	return dropShortLines(s)
}

// FoldASCII decomposes s, strips combining marks and maps or drops whatever is still non-ASCII.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		if alt, ok := asciiFallbacks[r]; ok {
			b.WriteString(alt)
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpaceRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func dropShortLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len([]rune(trimmed)) > MinLineLength {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
