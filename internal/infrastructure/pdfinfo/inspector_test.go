package pdfinfo

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

// buildPDF writes a minimal document with pageCount blank pages and a valid
// cross-reference table.
func buildPDF(pageCount int) []byte {
	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	kids := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", i+3))
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount))
	for i := 0; i < pageCount; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInspectCountsPDFPages(t *testing.T) {
	data := buildPDF(3)
	summary := NewInspector(nil).Inspect(domain.UploadFile{Name: "invoice.pdf", ContentType: "application/pdf", Data: data})

	if summary.Pages != 3 || summary.Warning != "" {
		t.Fatalf("expected 3 pages without warning, got %+v", summary)
	}
	if summary.Size != int64(len(data)) || summary.Name != "invoice.pdf" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestInspectWarnsOnUnreadablePDF(t *testing.T) {
	summary := NewInspector(nil).Inspect(domain.UploadFile{Name: "broken.pdf", Data: []byte("not a pdf at all")})
	if summary.Warning == "" || summary.Pages != 0 {
		t.Fatalf("expected warning for broken pdf, got %+v", summary)
	}
}

func TestInspectSkipsNonPDF(t *testing.T) {
	summary := NewInspector(nil).Inspect(domain.UploadFile{Name: "scan.png", ContentType: "image/png", Data: []byte{1, 2, 3}})
	if summary.Warning != "" || summary.Pages != 0 || summary.Size != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
