// Package extract provides page-level text extraction from uploaded document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kotaehq/kotae/internal/models"
)

// Extractor extracts page texts from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported lists the file extensions the upload surface accepts.
var Supported = []string{".pdf", ".txt", ".md", ".docx", ".xlsx"}

// IsSupported reports whether ext (with leading dot, any case) is an accepted
// upload format.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range Supported {
		if ext == s {
			return true
		}
	}
	return false
}

// Extract reads the file at path and returns its pages in source order.
// PDFs yield one PageText per page and XLSX one per sheet; plain text and DOCX
// yield a single page. The source label on every page is the file's base name.
func (e *Extractor) Extract(path string) ([]models.PageText, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)), filepath.Base(path))
}

// ExtractBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext, source string) ([]models.PageText, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content, source)
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return singlePage(text, source), nil
	case ".xlsx":
		return extractExcel(content, source)
	case ".txt", ".md":
		text, err := extractPlain(content)
		if err != nil {
			return nil, err
		}
		return singlePage(text, source), nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func singlePage(text, source string) []models.PageText {
	return []models.PageText{{Source: source, Page: 0, Text: text}}
}
