package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/core/storagepath"
)

// PackageDetailView is one package-detail component instance. It fetches a
// package once per identifier and renders from that single snapshot.
type PackageDetailView struct {
	backend  ports.PackageBackend
	resolver storagepath.Resolver
	logger   *slog.Logger

	mu   sync.Mutex
	snap domain.DetailSnapshot
}

func NewPackageDetailView(backend ports.PackageBackend, resolver storagepath.Resolver, logger *slog.Logger) *PackageDetailView {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackageDetailView{
		backend:  backend,
		resolver: resolver,
		logger:   logger,
		snap:     domain.DetailSnapshot{State: domain.LoadUnloaded},
	}
}

// Load fetches packageID unless it is already the loaded package. A new
// identifier resets the view to unloaded before fetching. On failure the view
// stays unloaded and the error is kept for Retry.
func (v *PackageDetailView) Load(ctx context.Context, packageID string) (domain.DetailSnapshot, error) {
	id, err := requirePackageID(packageID)
	if err != nil {
		return v.Snapshot(), err
	}

	v.mu.Lock()
	if v.snap.PackageID == id && v.snap.State == domain.LoadLoaded {
		snap := v.snap
		v.mu.Unlock()
		return snap, nil
	}
	v.snap = domain.DetailSnapshot{PackageID: id, State: domain.LoadUnloaded}
	v.mu.Unlock()

	return v.fetch(ctx, id)
}

// Retry refetches the current identifier after a failed Load.
func (v *PackageDetailView) Retry(ctx context.Context) (domain.DetailSnapshot, error) {
	v.mu.Lock()
	id, state := v.snap.PackageID, v.snap.State
	v.mu.Unlock()

	if id == "" {
		return v.Snapshot(), domain.WrapError(domain.ErrInvalidInput, "retry package load", fmt.Errorf("nothing to retry"))
	}
	if state == domain.LoadLoaded {
		return v.Snapshot(), nil
	}
	return v.fetch(ctx, id)
}

func (v *PackageDetailView) fetch(ctx context.Context, id string) (domain.DetailSnapshot, error) {
	pkg, err := v.backend.GetPackage(ctx, id)
	if err != nil {
		v.logger.Error("package_load_failed", "package_id", id, "error", err)
		v.mu.Lock()
		if v.snap.PackageID == id {
			v.snap.Error = err.Error()
		}
		snap := v.snap
		v.mu.Unlock()
		return snap, fmt.Errorf("load package %s: %w", id, err)
	}
	normalized, report := NormalizePackagePaths(v.resolver, *pkg)
	return v.commit(id, &normalized, report), nil
}

func (v *PackageDetailView) commit(id string, pkg *domain.Package, report domain.PathReport) domain.DetailSnapshot {
	for _, c := range report.Collisions {
		v.logger.Warn("storage_path_collision", "package_id", id, "basename", c.Basename, "sources", c.Sources)
	}
	for _, source := range report.Unresolved {
		v.logger.Warn("storage_path_unresolved", "package_id", id, "source", source)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snap.PackageID != id {
		// A newer Load replaced this identifier while the fetch was in flight.
		return v.snap
	}
	v.snap = domain.DetailSnapshot{
		PackageID:  id,
		State:      domain.LoadLoaded,
		Package:    pkg,
		Overlay:    v.snap.Overlay,
		Collisions: report.Collisions,
		Unresolved: report.Unresolved,
	}
	v.logger.Info("package_loaded",
		"package_id", id,
		"status", pkg.Status.String(),
		"images", len(pkg.ImagesWithBoxes),
		"submissions", len(pkg.FilledOutPackages),
	)
	return v.snap
}

// OpenImage shows one annotated image in the full-screen overlay.
func (v *PackageDetailView) OpenImage(index int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snap.State != domain.LoadLoaded || v.snap.Package == nil {
		return domain.WrapError(domain.ErrInvalidInput, "open image", fmt.Errorf("package not loaded"))
	}
	if index < 0 || index >= len(v.snap.Package.ImagesWithBoxes) {
		return domain.WrapError(domain.ErrInvalidInput, "open image", fmt.Errorf("image index %d out of range", index))
	}
	if v.snap.Package.ImagesWithBoxes[index] == "" {
		return domain.WrapError(domain.ErrInvalidPath, "open image", fmt.Errorf("image %d has no storage file", index))
	}
	v.snap.Overlay = domain.Overlay{Open: true, Image: index}
	return nil
}

func (v *PackageDetailView) CloseOverlay() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snap.Overlay = domain.Overlay{}
}

func (v *PackageDetailView) Snapshot() domain.DetailSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}
