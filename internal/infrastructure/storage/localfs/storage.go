package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

// Storage is the portal's local copy of backend artifacts, addressed by
// basename only.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./public/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) BasePath() string {
	return s.basePath
}

func (s *Storage) Open(_ context.Context, name string) (*os.File, fs.FileInfo, error) {
	if err := validateName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.WrapError(domain.ErrPackageNotFound, "open stored file", err)
		}
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, domain.WrapError(domain.ErrInvalidPath, "open stored file", fmt.Errorf("%s is a directory", name))
	}
	return f, info, nil
}

// ServeHTTP serves r.URL.Path as a basename. Mount it behind
// http.StripPrefix for the storage URL root.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/")
	f, info, err := s.Open(r.Context(), name)
	if err != nil {
		switch {
		case domain.IsKind(err, domain.ErrInvalidPath):
			http.Error(w, "invalid path", http.StatusBadRequest)
		case domain.IsKind(err, domain.ErrPackageNotFound):
			http.NotFound(w, r)
		default:
			http.Error(w, "storage unavailable", http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return domain.WrapError(domain.ErrInvalidPath, "open stored file", fmt.Errorf("%q is not a basename", name))
	}
	return nil
}
