package transform

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

func TestExcelEncoder(t *testing.T) {
	sheets := []models.Sheet{
		{Name: "Samples", Rows: [][]string{{"id", "conc"}, {"s1", "0.5"}}},
		{Name: "", Rows: [][]string{{"x"}}},
	}

	blob, err := ExcelEncoder{}.Encode("Concentrations", sheets)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("Encoded blob is not a readable workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Samples", "Sheet2"}) {
		t.Errorf("Unexpected sheet list: %v", got)
	}

	rows, err := f.GetRows("Samples")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	want := [][]string{{"id", "conc"}, {"s1", "0.5"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Expected rows %v, got %v", want, rows)
	}
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		i    int
		want string
	}{
		{"Kept as is", "Samples", 0, "Samples"},
		{"Empty falls back", "", 2, "Sheet3"},
		{"Truncated to 31 chars", "abcdefghijklmnopqrstuvwxyz0123456789", 0, "abcdefghijklmnopqrstuvwxyz01234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sheetName(tt.in, tt.i); got != tt.want {
				t.Errorf("sheetName(%q, %d) = %q, want %q", tt.in, tt.i, got, tt.want)
			}
		})
	}
}
