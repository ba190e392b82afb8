package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

func TestWriteSubmissionsKeepsOrder(t *testing.T) {
	pkg := domain.Package{
		ID:   "xyz",
		Name: "Invoice Batch",
		FormFields: []domain.FormField{
			{Name: "Total", Description: "Invoice total", Type: domain.FieldText},
			{Name: "Paid", Type: domain.FieldCheckbox},
		},
		FilledOutPackages: []domain.FilledOutPackage{
			{PDFPath: "/storage/a.pdf", Email: "a@example.com"},
			{PDFPath: "/storage/b.pdf", Email: "b@example.com"},
		},
	}

	var buf bytes.Buffer
	if err := WriteSubmissions(&buf, pkg); err != nil {
		t.Fatalf("WriteSubmissions() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetSubmissions)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "a@example.com" || rows[2][2] != "/storage/b.pdf" || rows[2][0] != "2" {
		t.Fatalf("unexpected rows %v", rows)
	}

	fields, err := f.GetRows(SheetFormFields)
	if err != nil {
		t.Fatalf("GetRows(fields) error = %v", err)
	}
	if len(fields) != 3 || fields[2][0] != "Paid" || fields[2][2] != "Checkbox" {
		t.Fatalf("unexpected field rows %v", fields)
	}
}

func TestWriteSubmissionsWithNoEntries(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSubmissions(&buf, domain.Package{ID: "empty"}); err != nil {
		t.Fatalf("WriteSubmissions() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetSubmissions)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %v", rows)
	}
}
