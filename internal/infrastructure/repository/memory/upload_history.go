package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const defaultCapacity = 500

// UploadHistory keeps the most recent submissions in process memory. It is
// used when no database is configured.
type UploadHistory struct {
	mu       sync.Mutex
	capacity int
	records  map[string]domain.UploadRecord
}

func NewUploadHistory(capacity int) *UploadHistory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &UploadHistory{
		capacity: capacity,
		records:  make(map[string]domain.UploadRecord),
	}
}

func (h *UploadHistory) RecordSubmission(_ context.Context, record domain.UploadRecord) error {
	if record.PackageID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record upload", fmt.Errorf("package id is empty"))
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[record.PackageID] = record
	if len(h.records) > h.capacity {
		h.evictOldestLocked()
	}
	return nil
}

func (h *UploadHistory) UpdateOutcome(_ context.Context, packageID string, outcome domain.UploadState, errMessage string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	record, ok := h.records[packageID]
	if !ok {
		return domain.WrapError(domain.ErrPackageNotFound, "update upload outcome", fmt.Errorf("id=%s", packageID))
	}
	now := time.Now().UTC()
	record.Outcome = outcome
	record.Error = errMessage
	record.SettledAt = &now
	h.records[packageID] = record
	return nil
}

func (h *UploadHistory) ListRecent(_ context.Context, limit int) ([]domain.UploadRecord, error) {
	h.mu.Lock()
	out := make([]domain.UploadRecord, 0, len(h.records))
	for _, record := range h.records {
		out = append(out, record)
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *UploadHistory) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, record := range h.records {
		if oldestID == "" || record.SubmittedAt.Before(oldest) {
			oldestID = id
			oldest = record.SubmittedAt
		}
	}
	delete(h.records, oldestID)
}
