package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kotaehq/kotae/internal/models"
)

// extractExcel returns one PageText per sheet, rows tab-joined, so search hits
// can point back to the sheet they came from.
func extractExcel(content []byte, source string) ([]models.PageText, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var pages []models.PageText
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		pages = append(pages, models.PageText{
			Source: source,
			Page:   i + 1,
			Text:   strings.TrimSpace(buf.String()),
		})
	}
	return pages, nil
}
