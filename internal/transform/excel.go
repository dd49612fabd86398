package transform

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

// ExcelEncoder serializes sheets into an xlsx workbook in memory
type ExcelEncoder struct{}

// Encode writes one worksheet per sheet. Sheet names fall back to SheetN and
// are truncated to the xlsx 31-character limit.
func (ExcelEncoder) Encode(title string, sheets []models.Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		name := sheetName(sheet.Name, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, err
			}
		}

		for r, cells := range sheet.Rows {
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			values := make([]interface{}, len(cells))
			for c, cell := range cells {
				values[c] = cell
			}
			if err := f.SetSheetRow(name, axis, &values); err != nil {
				return nil, err
			}
		}
	}

	if title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: title}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sheetName(name string, i int) string {
	if name == "" {
		name = fmt.Sprintf("Sheet%d", i+1)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
