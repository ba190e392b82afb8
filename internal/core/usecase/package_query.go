package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
	"github.com/kirillkom/formpack-portal/internal/core/storagepath"
)

type PackageQueryUseCase struct {
	backend  ports.PackageBackend
	resolver storagepath.Resolver
}

func NewPackageQueryUseCase(backend ports.PackageBackend, resolver storagepath.Resolver) *PackageQueryUseCase {
	return &PackageQueryUseCase{
		backend:  backend,
		resolver: resolver,
	}
}

func (uc *PackageQueryUseCase) Status(ctx context.Context, packageID string) (domain.StatusReading, error) {
	id, err := requirePackageID(packageID)
	if err != nil {
		return domain.StatusReading{}, err
	}
	reading, err := uc.backend.GetPackageStatus(ctx, id)
	if err != nil {
		return domain.StatusReading{}, fmt.Errorf("get package status: %w", err)
	}
	return reading, nil
}

func (uc *PackageQueryUseCase) Detail(ctx context.Context, packageID string) (*domain.Package, domain.PathReport, error) {
	id, err := requirePackageID(packageID)
	if err != nil {
		return nil, domain.PathReport{}, err
	}
	pkg, err := uc.backend.GetPackage(ctx, id)
	if err != nil {
		return nil, domain.PathReport{}, fmt.Errorf("get package: %w", err)
	}
	normalized, report := NormalizePackagePaths(uc.resolver, *pkg)
	return &normalized, report, nil
}

// NormalizePackagePaths returns a copy of pkg whose document and image paths
// point into the portal's storage root. pkg itself is not modified. A path
// without a file name is blanked in the copy and listed in the report.
func NormalizePackagePaths(resolver storagepath.Resolver, pkg domain.Package) (domain.Package, domain.PathReport) {
	out := pkg.Clone()

	var all []string
	if pkg.OriginalPDFPath != "" {
		all = append(all, pkg.OriginalPDFPath)
	}
	all = append(all, pkg.RawPDFs...)
	all = append(all, pkg.ImagesWithBoxes...)
	for _, filled := range pkg.FilledOutPackages {
		all = append(all, filled.PDFPath)
	}

	resolved, report := resolver.ResolveAll(all)

	next := 0
	take := func() string {
		v := resolved[next]
		next++
		return v
	}
	if pkg.OriginalPDFPath != "" {
		out.OriginalPDFPath = take()
	}
	for i := range out.RawPDFs {
		out.RawPDFs[i] = take()
	}
	for i := range out.ImagesWithBoxes {
		out.ImagesWithBoxes[i] = take()
	}
	for i := range out.FilledOutPackages {
		out.FilledOutPackages[i].PDFPath = take()
	}
	return out, report
}

func requirePackageID(packageID string) (string, error) {
	id := strings.TrimSpace(packageID)
	if id == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "package id", fmt.Errorf("package id is required"))
	}
	return id, nil
}
