package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"healix/internal/models"
	"healix/internal/util"
)

// sectionLevel is the deepest heading that starts a new unit.
const sectionLevel = 2

// MarkupExtractor reads Markdown and HTML files, picking the parser by extension.
type MarkupExtractor struct{}

func (MarkupExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTMLExtractor{}.Extract(ctx, path)
	default:
		return MarkdownExtractor{}.Extract(ctx, path)
	}
}

// MarkdownExtractor emits one unit per top-level section (H1/H2), rendered as plain text.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	return markdownSections(ctx, data)
}

// HTMLExtractor drops page chrome, converts the body to Markdown and sections it like MarkdownExtractor.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, iframe, form").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	html, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	converted, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}
	return markdownSections(ctx, []byte(converted))
}

func markdownSections(ctx context.Context, source []byte) ([]Unit, error) {
	parser := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)).Parser()
	doc := parser.Parse(text.NewReader(source))

	var (
		units   []Unit
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			units = append(units, Unit{Text: s, PageOrRow: models.PageNotApplicable})
		}
		current.Reset()
	}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h, ok := n.(*ast.Heading); ok && h.Level <= sectionLevel {
			flush()
		}
		writePlain(&current, n, source)
	}
	flush()

	if len(units) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return units, nil
}

// writePlain renders a block node as text, one line per block.
func writePlain(b *strings.Builder, node ast.Node, source []byte) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(v.Segment.Value(source))
				if v.HardLineBreak() {
					b.WriteByte('\n')
				} else if v.SoftLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(v.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(v.Label(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
				b.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *extast.TableCell:
			if !entering {
				b.WriteString(" | ")
			}
		case *extast.TableHeader, *extast.TableRow:
			if !entering {
				trimTrailing(b, " | ")
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *ast.ThematicBreak:
			if !entering {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
}

func trimTrailing(b *strings.Builder, suffix string) {
	s := b.String()
	if !strings.HasSuffix(s, suffix) {
		return
	}
	b.Reset()
	b.WriteString(strings.TrimSuffix(s, suffix))
}
