package ports

import (
	"context"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

// PackageUploader is one upload screen: submit, observe, tear down.
type PackageUploader interface {
	Submit(ctx context.Context, name string, files []domain.UploadFile) (string, error)
	Snapshot() domain.UploadSnapshot
	Wait(ctx context.Context) error
	Close()
}

// PackageQueryService answers one-shot reads with normalized storage paths.
type PackageQueryService interface {
	Status(ctx context.Context, packageID string) (domain.StatusReading, error)
	Detail(ctx context.Context, packageID string) (*domain.Package, domain.PathReport, error)
}

// UploadHistoryReader lists recent submissions for the history page.
type UploadHistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.UploadRecord, error)
}

// PackageDetailScreen is one detail view: load a record, toggle the image
// overlay, render from the snapshot.
type PackageDetailScreen interface {
	Load(ctx context.Context, packageID string) (domain.DetailSnapshot, error)
	Retry(ctx context.Context) (domain.DetailSnapshot, error)
	OpenImage(index int) error
	CloseOverlay()
	Snapshot() domain.DetailSnapshot
}
