package document

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-cli/internal/config"
)

// PDFExtractor extracts the text of each page of a PDF.
type PDFExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]string, error)
}

// NewPDFExtractor creates a PDFExtractor based on config.
func NewPDFExtractor(cfg config.DocumentConfig) (PDFExtractor, error) {
	switch cfg.PDFProvider {
	case "native", "":
		return NativePDF{}, nil
	case "pdftotext":
		return NewPdfToText(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("document: unknown pdf provider %q", cfg.PDFProvider)
	}
}

// NativePDF reads PDFs in-process.
type NativePDF struct{}

// ExtractPages returns the plain text of every page.
func (NativePDF) ExtractPages(ctx context.Context, path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open pdf %s", path)
	}
	defer f.Close() //nolint:errcheck

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "document: extract pages")
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			font := p.Font(name)
			fonts[name] = &font
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, eris.Wrapf(err, "document: page %d of %s", i, path)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout and splits its output on form feeds.
func (p *PdfToText) ExtractPages(ctx context.Context, path string) ([]string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "document: pdftotext failed for %s: %s", path, stderr.String())
	}

	pages := strings.Split(stdout.String(), "\f")
	// pdftotext terminates the last page with a form feed too.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}
