// Package pdfinfo summarizes selected upload files before they are sent to
// the backend.
package pdfinfo

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

type Inspector struct {
	logger *slog.Logger
}

func NewInspector(logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{logger: logger}
}

// Inspect never fails: files that cannot be read as PDFs get a warning and
// are still submitted.
func (i *Inspector) Inspect(file domain.UploadFile) domain.FileSummary {
	summary := domain.FileSummary{
		Name: file.Name,
		Size: int64(len(file.Data)),
	}
	if !isPDF(file) {
		return summary
	}

	pages, err := countPages(file.Data)
	if err != nil {
		i.logger.Warn("pdf_preflight_failed", "file", file.Name, "error", err)
		summary.Warning = "could not read PDF: " + err.Error()
		return summary
	}
	summary.Pages = pages
	return summary
}

func isPDF(file domain.UploadFile) bool {
	if strings.EqualFold(strings.TrimSpace(file.ContentType), "application/pdf") {
		return true
	}
	if strings.EqualFold(filepath.Ext(file.Name), ".pdf") {
		return true
	}
	return bytes.HasPrefix(file.Data, []byte("%PDF-"))
}

func countPages(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("file is empty")
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
