package transcript

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"healix/internal/models"
)

const title = "HealixAI conversation"

// Markdown renders the conversation with one bold speaker label per message.
func Markdown(turns []models.Turn) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	if len(turns) == 0 {
		b.WriteString("_No messages yet._\n")
		return b.String()
	}
	for _, t := range turns {
		if !t.At.IsZero() {
			fmt.Fprintf(&b, "### %s\n\n", t.At.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "**You:** %s\n\n", escape(t.Question))
		fmt.Fprintf(&b, "**HealixAI:** %s\n\n", escape(t.Answer))
	}
	return b.String()
}

// escape keeps user text from being read as markup.
func escape(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `#`, `\#`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// PDF lays the Markdown transcript out on A4 pages.
func PDF(turns []models.Turn) ([]byte, error) {
	source := []byte(Markdown(turns))
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	r := &renderer{pdf: pdf, source: source, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	r.reset()
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write transcript pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	// tr maps UTF-8 onto the cp1252 core fonts; runes outside it are substituted.
	tr   func(string) string
	bold bool
	ital bool
}

func (r *renderer) reset() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.ital {
		style += "I"
	}
	r.pdf.SetFont("Helvetica", style, 11)
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch v := n.(type) {
	case *ast.Heading:
		if entering {
			size := 16.0
			if v.Level > 1 {
				size = 9
			}
			r.pdf.SetFont("Helvetica", "B", size)
		} else {
			r.pdf.Ln(8)
			r.reset()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(8)
		}
	case *ast.Emphasis:
		if v.Level == 2 {
			r.bold = entering
		} else {
			r.ital = entering
		}
		r.reset()
	case *ast.Text:
		if entering {
			s := string(v.Segment.Value(r.source))
			if v.SoftLineBreak() {
				s += " "
			}
			r.pdf.Write(6, r.tr(s))
		}
	case *ast.String:
		if entering {
			r.pdf.Write(6, r.tr(string(v.Value)))
		}
	}
	return ast.WalkContinue, r.pdf.Error()
}
