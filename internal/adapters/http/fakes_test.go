package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/core/storagepath"
	"github.com/kirillkom/formpack-portal/internal/core/usecase"
)

type backendFake struct {
	mu sync.Mutex

	createID    string
	createdName string
	created     []domain.UploadFile

	status    string
	statusErr error

	packages map[string]*domain.Package
	pkgErr   error

	// When set, GetPackage signals entered and then blocks until release
	// is closed.
	entered chan struct{}
	release chan struct{}
}

func (f *backendFake) CreatePackage(_ context.Context, name string, files []domain.UploadFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdName = name
	f.created = files
	return f.createID, nil
}

func (f *backendFake) GetPackageStatus(context.Context, string) (domain.StatusReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return domain.StatusReading{}, f.statusErr
	}
	raw := f.status
	if raw == "" {
		raw = `"Complete"`
	}
	return domain.ReadStatus(raw), nil
}

func (f *backendFake) GetPackage(ctx context.Context, packageID string) (*domain.Package, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pkgErr != nil {
		return nil, f.pkgErr
	}
	pkg, ok := f.packages[packageID]
	if !ok {
		return nil, domain.WrapError(domain.ErrPackageNotFound, "get package", errors.New(packageID))
	}
	out := pkg.Clone()
	return &out, nil
}

type historyFake struct {
	records []domain.UploadRecord
}

func (f historyFake) ListRecent(_ context.Context, limit int) ([]domain.UploadRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func invoicePackage(id string) *domain.Package {
	return &domain.Package{
		ID:              id,
		Name:            "Invoice Batch",
		Status:          domain.StatusComplete,
		OriginalPDFPath: "/srv/uploads/invoice.pdf",
		ImagesWithBoxes: []string{"/srv/img1.png", "/srv/img2.png"},
		FormFields: []domain.FormField{
			{Name: "Total", Description: "Invoice total", Type: domain.FieldText},
		},
		FilledOutPackages: []domain.FilledOutPackage{
			{PDFPath: "/srv/filled/a.pdf", Email: "a@example.com"},
			{PDFPath: "/srv/filled/b.pdf", Email: "b@example.com"},
			{PDFPath: "/srv/filled/c.pdf", Email: "c@example.com"},
		},
		TypeformID:  "tf-xyz",
		TypeformURL: "https://form.typeform.com/to/tf-xyz",
	}
}

type testServer struct {
	handler http.Handler
	screens *ScreenRegistry
	backend *backendFake
}

func newTestServer(t *testing.T, backend *backendFake, mutate func(*Options)) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := storagepath.New("/storage")

	screens := NewScreenRegistry(func() ports.PackageUploader {
		return usecase.NewUploadScreen(backend, usecase.UploadScreenOptions{
			PollInterval:    2 * time.Millisecond,
			NotificationTTL: time.Second,
			Logger:          logger,
		})
	}, time.Minute, nil, logger)
	t.Cleanup(screens.CloseAll)

	opts := Options{
		StorageURLRoot:  "/storage",
		PollInterval:    time.Second,
		NotificationTTL: time.Second,
		Logger:          logger,
	}
	if mutate != nil {
		mutate(&opts)
	}

	router, err := NewRouter(
		opts,
		screens,
		usecase.NewPackageQueryUseCase(backend, resolver),
		func() ports.PackageDetailScreen { return usecase.NewPackageDetailView(backend, resolver, logger) },
		historyFake{records: []domain.UploadRecord{
			{PackageID: "p1", PackageName: "One", FileCount: 1, Outcome: domain.UploadSucceeded, SubmittedAt: time.Now()},
			{PackageID: "p2", PackageName: "Two", FileCount: 2, Outcome: domain.UploadFailed, Error: "boom", SubmittedAt: time.Now()},
		}},
		http.FileServer(http.Dir(t.TempDir())),
	)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return testServer{handler: router.Handler(), screens: screens, backend: backend}
}

// countByClass counts elements carrying class in their class attribute.
func countByClass(t *testing.T, body, tag, class string) int {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			for _, attr := range n.Attr {
				if attr.Key == "class" && containsField(attr.Val, class) {
					count++
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return count
}

// attrValues returns the value of key on every tag element that carries it.
func attrValues(t *testing.T, body, tag, key string) []string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	var values []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			for _, attr := range n.Attr {
				if attr.Key == key {
					values = append(values, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return values
}

func containsField(value, field string) bool {
	for _, f := range strings.Fields(value) {
		if f == field {
			return true
		}
	}
	return false
}
