package spreadsheet

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestSplitLines(t *testing.T) {
	got := SplitLines("a,b\r\nc,d\n\ne")
	want := []string{"a,b", "c,d", "", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitLines = %q, want %q", got, want)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "2025-01-15,12.50,expense,Food", []string{"2025-01-15", "12.50", "expense", "Food"}},
		{"quoted", `"2025-01-15","12.50","expense","Food & Dining","Lunch"`, []string{"2025-01-15", "12.50", "expense", "Food & Dining", "Lunch"}},
		{"comma in quotes", `2025-01-15,3,income,Salary,"Bonus, March"`, []string{"2025-01-15", "3", "income", "Salary", "Bonus, March"}},
		{"escaped quotes", `2025-01-15,3,income,Salary,"The ""big"" one"`, []string{"2025-01-15", "3", "income", "Salary", `The "big" one`}},
		{"spaces", " 2025-01-15 , 4 ,expense, Shopping ", []string{"2025-01-15", "4", "expense", "Shopping"}},
		{"too few", "2025-01-15,4", []string{"2025-01-15", "4"}},
		{"empty trailing field", "2025-01-15,4,expense,Shopping,", []string{"2025-01-15", "4", "expense", "Shopping", ""}},
		{"blank", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLine(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestWriteQuotedRow(t *testing.T) {
	var b strings.Builder
	if err := WriteQuotedRow(&b, []string{"2025-01-15", "12.5", `say "hi"`, ""}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `"2025-01-15","12.5","say ""hi""",""`
	if b.String() != want {
		t.Fatalf("got %s, want %s", b.String(), want)
	}
}

func TestXLSXToCSV(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Date", "Amount", "Type", "Category", "Description"},
		{"2025-02-01", "42.5", "expense", "Shopping", "Shoes, red"},
		{"2025-02-02", "1000", "income", "Salary", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	text, err := XLSXToCSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	lines := SplitLines(text)
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 lines, got %q", lines)
	}
	if got := ParseLine(lines[1]); !reflect.DeepEqual(got, []string{"2025-02-01", "42.5", "expense", "Shopping", "Shoes, red"}) {
		t.Fatalf("row 1 = %q", got)
	}
	if got := ParseLine(lines[2]); len(got) < 4 || got[3] != "Salary" {
		t.Fatalf("row 2 = %q", got)
	}
}

func TestXLSXToCSVFlattensMultilineCells(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for cell, v := range map[string]string{
		"A1": "Date", "B1": "Amount", "C1": "Type", "D1": "Category", "E1": "Description",
		"A2": "2025-02-01", "B2": "12", "C2": "expense", "D2": "Food", "E2": "line one\nline two\r\nline three",
	} {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	text, err := XLSXToCSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	lines := SplitLines(strings.TrimRight(text, "\n"))
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", lines)
	}
	want := []string{"2025-02-01", "12", "expense", "Food", "line one line two line three"}
	if got := ParseLine(lines[1]); !reflect.DeepEqual(got, want) {
		t.Fatalf("row = %q, want %q", got, want)
	}
}

func TestXLSXToCSVRejectsGarbage(t *testing.T) {
	if _, err := XLSXToCSV(strings.NewReader("not a workbook")); err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}
