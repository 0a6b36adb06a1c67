// Package extract turns source documents into raw invoice lines and
// document-level header metadata. It owns line splitting; the upstream
// text technology (PDF text layer, OCR output) sits behind the TextSource
// contract.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractionError marks an upstream acquisition failure. Fatal for the
// affected document only.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed for %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TextSource supplies the full extracted text for a document.
type TextSource interface {
	Extract(path string) (string, error)
}

// FileSource reads documents from the local filesystem, dispatching on
// extension: PDFs go through the pdf text layer, anything else is read as
// plain text.
type FileSource struct{}

func (FileSource) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := pdfText(data)
		if err != nil {
			return "", &ExtractionError{Path: path, Err: err}
		}
		return text, nil
	}
	return string(data), nil
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
