package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

func TestUploadHistoryListsNewestFirst(t *testing.T) {
	h := NewUploadHistory(10)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		err := h.RecordSubmission(ctx, domain.UploadRecord{PackageID: id, SubmittedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("RecordSubmission(%s) error = %v", id, err)
		}
	}

	records, err := h.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 || records[0].PackageID != "c" || records[1].PackageID != "b" {
		t.Fatalf("unexpected order %+v", records)
	}
}

func TestUploadHistoryUpdateOutcome(t *testing.T) {
	h := NewUploadHistory(10)
	ctx := context.Background()

	if err := h.UpdateOutcome(ctx, "missing", domain.UploadFailed, "x"); !domain.IsKind(err, domain.ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}

	_ = h.RecordSubmission(ctx, domain.UploadRecord{PackageID: "p1", Outcome: domain.UploadPolling, SubmittedAt: time.Now()})
	if err := h.UpdateOutcome(ctx, "p1", domain.UploadSucceeded, ""); err != nil {
		t.Fatalf("UpdateOutcome() error = %v", err)
	}
	records, _ := h.ListRecent(ctx, 0)
	if records[0].Outcome != domain.UploadSucceeded || records[0].SettledAt == nil {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestUploadHistoryEvictsOldest(t *testing.T) {
	h := NewUploadHistory(2)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"old", "mid", "new"} {
		_ = h.RecordSubmission(ctx, domain.UploadRecord{PackageID: id, SubmittedAt: base.Add(time.Duration(i) * time.Second)})
	}
	records, _ := h.ListRecent(ctx, 0)
	if len(records) != 2 || records[1].PackageID != "mid" {
		t.Fatalf("expected oldest evicted, got %+v", records)
	}
}
