// Package document loads contract files into normalized text with page
// offsets.
package document

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contract-cli/internal/config"
	"github.com/sells-group/contract-cli/internal/model"
)

// pageSeparator joins pages in the assembled text.
const pageSeparator = "\n\n"

// ErrNoText is returned when a file yields no extractable text.
var ErrNoText = eris.New("document: no extractable text")

// Loader turns files into RawDocuments.
type Loader struct {
	pdf PDFExtractor
}

// NewLoader creates a Loader using the configured PDF provider.
func NewLoader(cfg config.DocumentConfig) (*Loader, error) {
	ext, err := NewPDFExtractor(cfg)
	if err != nil {
		return nil, err
	}
	return &Loader{pdf: ext}, nil
}

// NewLoaderWith creates a Loader around an explicit PDF extractor.
func NewLoaderWith(pdf PDFExtractor) *Loader {
	return &Loader{pdf: pdf}
}

// Load reads path. PDFs go through the PDF extractor; everything else is
// read as UTF-8 text.
func (l *Loader) Load(ctx context.Context, path string) (model.RawDocument, error) {
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := l.pdf.ExtractPages(ctx, path)
		if err != nil {
			return model.RawDocument{}, err
		}
		doc := FromPages(name, pages)
		if strings.TrimSpace(doc.Text) == "" {
			return model.RawDocument{}, eris.Wrapf(ErrNoText, "document: %s", name)
		}
		zap.L().Debug("document: loaded pdf",
			zap.String("file", name),
			zap.Int("pages", len(pages)),
			zap.Int("chars", len(doc.Text)),
		)
		return doc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.RawDocument{}, eris.Wrapf(err, "document: read %s", path)
	}
	return FromText(name, string(data)), nil
}

// LoadReader loads a document from r. PDFs are spooled to a temporary file
// since the extractors need random access.
func (l *Loader) LoadReader(ctx context.Context, fileName string, r io.Reader) (model.RawDocument, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		data, err := io.ReadAll(r)
		if err != nil {
			return model.RawDocument{}, eris.Wrapf(err, "document: read %s", fileName)
		}
		return FromText(fileName, string(data)), nil
	}

	tmp, err := os.CreateTemp("", "contract-*.pdf")
	if err != nil {
		return model.RawDocument{}, eris.Wrap(err, "document: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close() //nolint:errcheck
		return model.RawDocument{}, eris.Wrap(err, "document: spool pdf")
	}
	if err := tmp.Close(); err != nil {
		return model.RawDocument{}, eris.Wrap(err, "document: close temp file")
	}

	doc, err := l.Load(ctx, tmp.Name())
	if err != nil {
		return model.RawDocument{}, err
	}
	doc.FileName = fileName
	return doc, nil
}

// FromText builds a single-page document from plain text. Form feeds are
// treated as page breaks.
func FromText(fileName, text string) model.RawDocument {
	if strings.Contains(text, "\f") {
		return FromPages(fileName, strings.Split(text, "\f"))
	}
	return model.RawDocument{FileName: fileName, Text: Normalize(text)}
}

// FromPages normalizes each page and joins them, recording where each page
// starts in the joined text.
func FromPages(fileName string, pages []string) model.RawDocument {
	var sb strings.Builder
	offsets := make([]int, 0, len(pages))
	for i, p := range pages {
		if i > 0 {
			sb.WriteString(pageSeparator)
		}
		offsets = append(offsets, sb.Len())
		sb.WriteString(Normalize(p))
	}
	return model.RawDocument{FileName: fileName, Text: sb.String(), PageOffsets: offsets}
}

// Normalize folds compatibility characters (ligatures, full-width digits,
// non-breaking spaces) with NFKC, unifies line endings and drops NUL bytes
// and trailing whitespace on each line.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
