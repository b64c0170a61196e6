// Package pdftext extracts plain text from PDF files.
package pdftext

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sin-text/backend/internal/models"
)

// Extractor reads the text layer of a PDF.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the document text. Empty, unreadable or text-less files
// fail with an extraction error.
func (e *Extractor) Extract(ctx context.Context, path string) (text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", models.ExtractionFailure("failed to open PDF", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", models.ExtractionFailure("failed to stat PDF", err)
	}
	if info.Size() == 0 {
		return "", models.ExtractionFailure("uploaded file is empty", nil)
	}

	if err := ctx.Err(); err != nil {
		return "", models.ExtractionFailure("extraction cancelled", err)
	}

	// The parser panics on some corrupt cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = models.ExtractionFailure("corrupt PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", models.ExtractionFailure("failed to read PDF", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", models.ExtractionFailure("failed to extract text", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", models.ExtractionFailure("failed to extract text", err)
	}

	text = b.String()
	if strings.TrimSpace(text) == "" {
		return "", models.ExtractionFailure("no extractable text in PDF", nil)
	}
	return text, nil
}
