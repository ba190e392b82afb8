package httpadapter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type uploadPage struct {
	ScreenID       string
	Snapshot       domain.UploadSnapshot
	FormError      string
	Refresh        bool
	RefreshSeconds int
	// DismissMillis is how long the visible notification stays on screen.
	DismissMillis int
}

type detailPage struct {
	Snapshot     domain.DetailSnapshot
	OverlayImage string
	CloseURL     string
	ExportURL    string
}

type packagesPage struct {
	Records []domain.UploadRecord
}

type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	funcs := template.FuncMap{
		"add1":       func(i int) int { return i + 1 },
		"humanBytes": humanBytes,
		"formatTime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"upload", "detail", "packages"} {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &pageRenderer{pages: pages}, nil
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (p *pageRenderer) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := p.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		http.Error(w, "render page: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
