package ports

import (
	"context"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

// PackageBackend is the remote service that owns packages and their lifecycle.
type PackageBackend interface {
	CreatePackage(ctx context.Context, name string, files []domain.UploadFile) (string, error)
	GetPackageStatus(ctx context.Context, packageID string) (domain.StatusReading, error)
	GetPackage(ctx context.Context, packageID string) (*domain.Package, error)
}

// EventPublisher announces lifecycle changes observed by upload screens.
type EventPublisher interface {
	PublishPackageEvent(ctx context.Context, event domain.PackageEvent) error
}

// EventSubscriber consumes lifecycle changes until ctx is done.
type EventSubscriber interface {
	SubscribePackageEvents(ctx context.Context, handler func(context.Context, domain.PackageEvent) error) error
}

// UploadHistory records submissions made through this portal.
type UploadHistory interface {
	RecordSubmission(ctx context.Context, record domain.UploadRecord) error
	UpdateOutcome(ctx context.Context, packageID string, outcome domain.UploadState, errMessage string) error
	ListRecent(ctx context.Context, limit int) ([]domain.UploadRecord, error)
}

// FileInspector summarizes a selected file before submission.
type FileInspector interface {
	Inspect(file domain.UploadFile) domain.FileSummary
}

// UploadObserver receives poll and settle measurements.
type UploadObserver interface {
	ObservePoll(outcome string, duration time.Duration)
	ObserveUploadSettled(state domain.UploadState, duration time.Duration)
}
