package importer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cellName, cell); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseCSVStripsBOMAndSkipsEmptyRows(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Name,Segment\n\nAlpha,Fintech\n,,\nBeta,Fintech\n")...)
	table, err := parseTable("data.csv", payload)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if table.headers[0] != "Name" {
		t.Fatalf("BOM not stripped, first header %q", table.headers[0])
	}
	if len(table.rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(table.rows))
	}
	// Row numbers are 1-based with the header as row 1; the all-empty
	// record between Alpha and Beta keeps its slot.
	if table.rowNumbers[0] != 2 || table.rowNumbers[1] != 4 {
		t.Fatalf("row numbers = %v, want [2 4]", table.rowNumbers)
	}
}

func TestParseCSVPadsShortRows(t *testing.T) {
	payload := []byte("a,b,c\n1,2\n")
	table, err := parseTable("data.csv", payload)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(table.rows[0]) != 3 {
		t.Fatalf("short row not padded: %v", table.rows[0])
	}
	if table.rows[0][2] != "" {
		t.Fatalf("padding cell = %q", table.rows[0][2])
	}
}

func TestParseTableRejectsUnknownExtension(t *testing.T) {
	_, err := parseTable("data.json", []byte("{}"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseExcelReadsFirstSheet(t *testing.T) {
	payload := buildWorkbook(t, [][]string{
		{"Name", "Segment"},
		{"Alpha", "Fintech"},
		{"Beta", "Fintech"},
	})
	table, err := parseTable("data.xlsx", payload)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if len(table.headers) != 2 || len(table.rows) != 2 {
		t.Fatalf("unexpected table shape: headers=%v rows=%v", table.headers, table.rows)
	}
	if table.rows[1][0] != "Beta" {
		t.Fatalf("row content = %v", table.rows[1])
	}
}

func TestParseTableRequiresHeader(t *testing.T) {
	_, err := parseTable("data.csv", []byte("\n\n"))
	if err == nil {
		t.Fatalf("expected error for file without rows")
	}
}
