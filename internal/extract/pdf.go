package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kotaehq/kotae/internal/models"
)

// extractPDF returns one PageText per PDF page so chunk provenance keeps the
// page number. Null pages are skipped but page numbering follows the document.
func extractPDF(content []byte, source string) ([]models.PageText, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]models.PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, models.PageText{Source: source, Page: i, Text: text})
	}
	return pages, nil
}
