package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/notify"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
)

const (
	defaultMaxUploadBytes = 64 << 20
	defaultHistoryLimit   = 50
	multipartMemory       = 8 << 20
)

// Metrics is the subset of portal metrics the router reports to.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
	RecordPathCollisions(n int)
}

// SubmissionsExporter writes a package's filled-out submissions as a
// spreadsheet.
type SubmissionsExporter func(w io.Writer, pkg domain.Package) error

type Options struct {
	StorageURLRoot   string
	MaxUploadBytes   int64
	PollInterval     time.Duration
	NotificationTTL  time.Duration
	HistoryLimit     int
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	Logger           *slog.Logger
	Metrics          Metrics
	Export           SubmissionsExporter
}

type Router struct {
	opts    Options
	screens *ScreenRegistry
	query   ports.PackageQueryService
	details func() ports.PackageDetailScreen
	history ports.UploadHistoryReader
	storage http.Handler
	pages   *pageRenderer
	logger  *slog.Logger
}

func NewRouter(
	opts Options,
	screens *ScreenRegistry,
	query ports.PackageQueryService,
	details func() ports.PackageDetailScreen,
	history ports.UploadHistoryReader,
	storage http.Handler,
) (*Router, error) {
	pages, err := newPageRenderer()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = notify.DefaultTTL
	}
	opts.StorageURLRoot = "/" + strings.Trim(opts.StorageURLRoot, "/")
	return &Router{
		opts:    opts,
		screens: screens,
		query:   query,
		details: details,
		history: history,
		storage: storage,
		pages:   pages,
		logger:  opts.Logger,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/upload", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /upload", rt.openUploadScreen)
	mux.HandleFunc("GET /upload/{screen}", rt.showUploadScreen)
	mux.HandleFunc("POST /upload/{screen}", rt.submitUpload)
	mux.HandleFunc("GET /upload/{screen}/state", rt.uploadState)
	mux.HandleFunc("POST /upload/{screen}/close", rt.closeUploadScreen)
	mux.HandleFunc("GET /packages", rt.listPackages)
	mux.HandleFunc("GET /packages/{id}", rt.showPackage)
	mux.HandleFunc("GET /packages/{id}/submissions.xlsx", rt.exportSubmissions)
	mux.HandleFunc("GET /api/packages/{id}", rt.getPackage)
	mux.HandleFunc("GET /api/packages/{id}/status", rt.getPackageStatus)
	if rt.storage != nil && rt.opts.StorageURLRoot != "/" {
		mux.Handle("GET "+rt.opts.StorageURLRoot+"/", http.StripPrefix(rt.opts.StorageURLRoot+"/", rt.storage))
	}
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, rt.opts.StorageURLRoot, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openUploadScreen(w http.ResponseWriter, r *http.Request) {
	id, _, err := rt.screens.Open()
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/upload/"+url.PathEscape(id), http.StatusSeeOther)
}

func (rt *Router) showUploadScreen(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("screen")
	screen, err := rt.screens.Get(id)
	if err != nil {
		if domain.IsKind(err, domain.ErrScreenNotFound) {
			// Expired screens start over with a fresh one.
			http.Redirect(w, r, "/upload", http.StatusSeeOther)
			return
		}
		writeError(w, err)
		return
	}
	rt.renderUpload(w, http.StatusOK, id, screen.Snapshot(), "")
}

func (rt *Router) submitUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("screen")
	screen, err := rt.screens.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("upload exceeds %d bytes", rt.opts.MaxUploadBytes),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, err := readUploadFiles(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := screen.Submit(r.Context(), r.FormValue("name"), files); err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			rt.renderUpload(w, http.StatusBadRequest, id, screen.Snapshot(), "Select at least one PDF file to upload.")
			return
		}
		rt.logger.WarnContext(r.Context(), "upload_submit_failed", "screen_id", id, "error", err)
	}
	http.Redirect(w, r, "/upload/"+url.PathEscape(id), http.StatusSeeOther)
}

func readUploadFiles(headers []*multipart.FileHeader) ([]domain.UploadFile, error) {
	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
		}
		files = append(files, domain.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func (rt *Router) uploadState(w http.ResponseWriter, r *http.Request) {
	screen, err := rt.screens.Get(r.PathValue("screen"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, screen.Snapshot())
}

func (rt *Router) closeUploadScreen(w http.ResponseWriter, r *http.Request) {
	if err := rt.screens.Close(r.PathValue("screen")); err != nil && !domain.IsKind(err, domain.ErrScreenNotFound) {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/packages", http.StatusSeeOther)
}

// renderUpload refreshes the page while the upload is in progress and once
// more when a visible notification is due to be dismissed. The toast also
// hides itself client-side after the remaining ttl.
func (rt *Router) renderUpload(w http.ResponseWriter, status int, id string, snap domain.UploadSnapshot, formError string) {
	page := uploadPage{
		ScreenID:  id,
		Snapshot:  snap,
		FormError: formError,
	}
	if snap.Loading {
		page.Refresh = true
		page.RefreshSeconds = ceilSeconds(rt.opts.PollInterval)
	}
	if n := snap.Notification; n != nil {
		remaining := time.Until(n.ShownAt.Add(rt.opts.NotificationTTL))
		if remaining < 0 {
			remaining = 0
		}
		page.DismissMillis = int(remaining.Milliseconds())
		if dismiss := ceilSeconds(remaining); !page.Refresh || dismiss < page.RefreshSeconds {
			page.Refresh = true
			page.RefreshSeconds = dismiss
		}
	}
	rt.pages.render(w, status, "upload", page)
}

func ceilSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (rt *Router) listPackages(w http.ResponseWriter, r *http.Request) {
	var records []domain.UploadRecord
	if rt.history != nil {
		var err error
		records, err = rt.history.ListRecent(r.Context(), rt.opts.HistoryLimit)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	rt.pages.render(w, http.StatusOK, "packages", packagesPage{Records: records})
}

func (rt *Router) showPackage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var image *int
	if err := runtime.BindQueryParameter("form", true, false, "image", r.URL.Query(), &image); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image must be an integer"})
		return
	}

	view := rt.details()
	snap, err := view.Load(r.Context(), id)
	page := detailPage{
		CloseURL:  "/packages/" + url.PathEscape(id),
		ExportURL: "/packages/" + url.PathEscape(id) + "/submissions.xlsx",
	}
	if err != nil {
		rt.logger.WarnContext(r.Context(), "package_detail_load_failed", "package_id", id, "error", err)
		page.Snapshot = snap
		rt.pages.render(w, mapErrorToHTTPStatus(err), "detail", page)
		return
	}
	if len(snap.Collisions) > 0 && rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordPathCollisions(len(snap.Collisions))
	}
	if len(snap.Unresolved) > 0 {
		rt.logger.WarnContext(r.Context(), "package_detail_unresolved_paths", "package_id", id, "count", len(snap.Unresolved))
	}
	if image != nil {
		// An index outside the image list renders without the overlay.
		if err := view.OpenImage(*image); err == nil {
			snap = view.Snapshot()
		}
	}
	page.Snapshot = snap
	page.OverlayImage, _ = snap.OverlayImage()
	rt.pages.render(w, http.StatusOK, "detail", page)
}

func (rt *Router) exportSubmissions(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Export == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export is not available"})
		return
	}
	pkg, _, err := rt.query.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.opts.Export(&buf, *pkg); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(pkg)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func exportFilename(pkg *domain.Package) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		default:
			return -1
		}
	}, pkg.Name)
	if base == "" {
		base = "package-" + pkg.ID
	}
	return base + "-submissions.xlsx"
}

func (rt *Router) getPackage(w http.ResponseWriter, r *http.Request) {
	pkg, report, err := rt.query.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(report.Collisions) > 0 && rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordPathCollisions(len(report.Collisions))
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (rt *Router) getPackageStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reading, err := rt.query.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"packageId": id,
		"status":    reading.Text,
		"complete":  reading.Status.IsTerminal(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
