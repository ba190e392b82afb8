package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const (
	SheetSubmissions = "Submissions"
	SheetFormFields  = "Form Fields"
)

// WriteSubmissions renders a package's filled-out submissions and form
// fields as a workbook. Paths are written as given, so callers pass the
// normalized record.
func WriteSubmissions(w io.Writer, pkg domain.Package) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSubmissions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetFormFields); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	submissions := [][]any{{"#", "Email", "PDF"}}
	for i, filled := range pkg.FilledOutPackages {
		submissions = append(submissions, []any{i + 1, filled.Email, filled.PDFPath})
	}
	if err := writeRows(f, SheetSubmissions, submissions, header); err != nil {
		return err
	}

	fields := [][]any{{"Name", "Description", "Type"}}
	for _, field := range pkg.FormFields {
		fields = append(fields, []any{field.Name, field.Description, string(field.Type)})
	}
	if err := writeRows(f, SheetFormFields, fields, header); err != nil {
		return err
	}

	if err := f.SetColWidth(SheetSubmissions, "B", "C", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetFormFields, "A", "B", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   pkg.Name,
		Subject: "Package " + pkg.ID,
		Creator: "formpack-portal",
	}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
