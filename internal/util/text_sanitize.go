package util

import "strings"

// SanitizeText drops NUL, other C0 controls, DEL and the Unicode replacement
// character left behind by PDF extraction. Newlines and tabs survive.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20, ch == 0x7f, ch == '\uFFFD':
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
