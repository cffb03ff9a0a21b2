package corpus

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"healix/internal/models"
	"healix/internal/util"
)

// Unit is one raw page or row before normalization.
type Unit struct {
	Text      string
	PageOrRow string
}

type Extractor interface {
	Extract(ctx context.Context, path string) ([]Unit, error)
}

// PDFExtractor emits one unit per page, numbered from 1.
type PDFExtractor struct{}

func (PDFExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	units, err := readPDFPages(ctx, path)
	switch {
	case err == nil:
		return units, nil
	case errors.Is(err, util.ErrNoExtractableText), ctx.Err() != nil:
		return nil, err
	default:
		return nil, describePDFFailure(path, err)
	}
}

func readPDFPages(ctx context.Context, path string) (units []Unit, err error) {
	defer func() {
		// the pdf reader panics on some malformed xref tables
		if r := recover(); r != nil {
			units = nil
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	units = make([]Unit, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, Unit{Text: text, PageOrRow: strconv.Itoa(i)})
	}
	if len(units) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return units, nil
}

// describePDFFailure asks pdfcpu about the file structure so the log says whether
// the document is encrypted, damaged or just unreadable by the text extractor.
func describePDFFailure(path string, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w (structure unreadable)", cause)
		}
	}()
	pctx, perr := api.ReadContextFile(path)
	if perr != nil {
		return fmt.Errorf("%w (structure: %v)", cause, perr)
	}
	if pctx.Encrypt != nil {
		return fmt.Errorf("%w: pdf is encrypted", util.ErrNoExtractableText)
	}
	return fmt.Errorf("%w (%d pages)", cause, pctx.PageCount)
}

// CSVExtractor emits one unit per data row, rendered as "header: value" lines.
type CSVExtractor struct{}

func (CSVExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, util.ErrNoExtractableText
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var units []Unit
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		text := renderRow(header, record)
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, Unit{Text: text, PageOrRow: models.PageNotApplicable})
	}
	if len(units) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return units, nil
}

func renderRow(header, record []string) string {
	lines := make([]string, 0, len(record))
	for i, v := range record {
		key := ""
		if i < len(header) {
			key = header[i]
		}
		if key == "" {
			key = "column_" + strconv.Itoa(i+1)
		}
		lines = append(lines, key+": "+strings.TrimSpace(v))
	}
	return strings.Join(lines, "\n")
}
