package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return usageError{msg: fmt.Sprintf("unknown output format %q", format)}
	}
}

func render(w io.Writer, format string, v any, table func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return writeYAML(w, v)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if err := table(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}

// writeYAML goes through JSON first so YAML keys match the wire names.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func packageTable(w io.Writer, pkg *domain.Package) error {
	fmt.Fprintf(w, "ID\t%s\n", pkg.ID)
	fmt.Fprintf(w, "NAME\t%s\n", pkg.Name)
	fmt.Fprintf(w, "STATUS\t%s\n", pkg.Status)
	fmt.Fprintf(w, "ORIGINAL\t%s\n", pkg.OriginalPDFPath)
	if pkg.TypeformURL != "" {
		fmt.Fprintf(w, "FORM\t%s\n", pkg.TypeformURL)
	}
	for i, img := range pkg.ImagesWithBoxes {
		fmt.Fprintf(w, "IMAGE %d\t%s\n", i+1, img)
	}
	for _, field := range pkg.FormFields {
		fmt.Fprintf(w, "FIELD\t%s\t%s\t%s\n", field.Name, field.Type, field.Description)
	}
	for _, filled := range pkg.FilledOutPackages {
		fmt.Fprintf(w, "SUBMISSION\t%s\t%s\n", filled.Email, filled.PDFPath)
	}
	return nil
}

func uploadTable(w io.Writer, snap domain.UploadSnapshot) error {
	fmt.Fprintf(w, "PACKAGE\t%s\n", snap.PackageID)
	fmt.Fprintf(w, "NAME\t%s\n", snap.PackageName)
	fmt.Fprintf(w, "OUTCOME\t%s\n", snap.State)
	fmt.Fprintf(w, "STATUS\t%s\n", snap.StatusText)
	fmt.Fprintf(w, "POLLS\t%d\n", snap.Polls)
	for _, file := range snap.Files {
		pages := "-"
		if file.Pages > 0 {
			pages = fmt.Sprint(file.Pages)
		}
		fmt.Fprintf(w, "FILE\t%s\t%d bytes\t%s pages\n", file.Name, file.Size, pages)
	}
	if snap.Error != "" {
		fmt.Fprintf(w, "ERROR\t%s\n", snap.Error)
	}
	return nil
}
