package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

type queryFake struct {
	reading domain.StatusReading
	pkg     *domain.Package
	err     error
}

func (f queryFake) Status(context.Context, string) (domain.StatusReading, error) {
	return f.reading, f.err
}

func (f queryFake) Detail(context.Context, string) (*domain.Package, domain.PathReport, error) {
	if f.err != nil {
		return nil, domain.PathReport{}, f.err
	}
	return f.pkg, domain.PathReport{
		Collisions: []domain.PathCollision{{Basename: "page.png", Sources: []string{"/a/page.png", "/b/page.png"}}},
		Unresolved: []string{"/srv/images/"},
	}, nil
}

func newTestServer(t *testing.T, query queryFake) *Server {
	t.Helper()
	s, err := NewServer("formpack-test", "0.0.0", query, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
		if text, ok := content.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func TestNewServerRequiresQuery(t *testing.T) {
	if _, err := NewServer("x", "1", nil, nil); err == nil {
		t.Fatalf("expected error for nil query service")
	}
}

func TestPackageStatusTool(t *testing.T) {
	s := newTestServer(t, queryFake{reading: domain.ReadStatus(`"Complete"`)})

	result, err := s.handlePackageStatus(context.Background(), toolRequest(map[string]any{"packageId": "abc"}))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(result))
	}
	if got := resultText(result); got != "Package abc: Complete (ready)" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestPackageDetailsTool(t *testing.T) {
	s := newTestServer(t, queryFake{pkg: &domain.Package{
		ID:              "abc",
		Name:            "Invoice Batch",
		Status:          domain.StatusComplete,
		OriginalPDFPath: "/storage/invoice.pdf",
		FormFields:      []domain.FormField{{Name: "Total", Type: domain.FieldText}},
		FilledOutPackages: []domain.FilledOutPackage{
			{Email: "a@example.com", PDFPath: "/storage/a.pdf"},
		},
	}})

	result, err := s.handlePackageDetails(context.Background(), toolRequest(map[string]any{"packageId": "abc"}))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	text := resultText(result)
	for _, want := range []string{"Invoice Batch", "Submissions: 1", "a@example.com", "share the name page.png", `no file name in "/srv/images/"`, `"packageId":"abc"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in result, got:\n%s", want, text)
		}
	}
}

func TestToolsReportErrorsAsResults(t *testing.T) {
	s := newTestServer(t, queryFake{err: domain.WrapError(domain.ErrPackageNotFound, "get package", errors.New("abc"))})

	handlers := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	}{
		{name: ToolPackageStatus, handler: s.handlePackageStatus},
		{name: ToolPackageDetails, handler: s.handlePackageDetails},
	}
	for _, h := range handlers {
		t.Run(h.name, func(t *testing.T) {
			missing, err := h.handler(context.Background(), toolRequest(map[string]any{}))
			if err != nil || missing == nil || !missing.IsError {
				t.Fatalf("expected error result for missing packageId, got %+v err=%v", missing, err)
			}

			failed, err := h.handler(context.Background(), toolRequest(map[string]any{"packageId": "abc"}))
			if err != nil || failed == nil || !failed.IsError {
				t.Fatalf("expected error result for backend failure, got %+v err=%v", failed, err)
			}
			if !strings.Contains(resultText(failed), "package not found") {
				t.Fatalf("unexpected error text %q", resultText(failed))
			}
		})
	}
}
