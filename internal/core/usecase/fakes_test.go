package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

type backendFake struct {
	mu sync.Mutex

	createID     string
	createErr    error
	createdName  string
	createdFiles int

	statuses    []string
	statusErrAt int
	statusCalls int
	statusDelay time.Duration
	onStatus    func(call int)
	inFlight    int
	maxInFlight int

	packages map[string]*domain.Package
	pkgErr   error
	getCalls int
}

func (f *backendFake) CreatePackage(_ context.Context, name string, files []domain.UploadFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdName = name
	f.createdFiles = len(files)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *backendFake) GetPackageStatus(ctx context.Context, _ string) (domain.StatusReading, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	hook := f.onStatus
	delay := f.statusDelay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		hook(call)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.StatusReading{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErrAt > 0 && call >= f.statusErrAt {
		return domain.StatusReading{}, domain.WrapError(domain.ErrTemporary, "get status", errors.New("connection refused"))
	}
	if len(f.statuses) == 0 {
		return domain.ReadStatus(`"Preprocessing"`), nil
	}
	idx := call - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return domain.ReadStatus(f.statuses[idx]), nil
}

func (f *backendFake) GetPackage(_ context.Context, packageID string) (*domain.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.pkgErr != nil {
		return nil, f.pkgErr
	}
	pkg, ok := f.packages[packageID]
	if !ok {
		return nil, domain.WrapError(domain.ErrPackageNotFound, "get package", errors.New(packageID))
	}
	copyPkg := pkg.Clone()
	return &copyPkg, nil
}

func (f *backendFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

type historyFake struct {
	mu       sync.Mutex
	records  []domain.UploadRecord
	outcomes map[string]domain.UploadState
}

func (f *historyFake) RecordSubmission(_ context.Context, record domain.UploadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *historyFake) UpdateOutcome(_ context.Context, packageID string, outcome domain.UploadState, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = make(map[string]domain.UploadState)
	}
	f.outcomes[packageID] = outcome
	return nil
}

func (f *historyFake) ListRecent(context.Context, int) ([]domain.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UploadRecord(nil), f.records...), nil
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.PackageEvent
}

func (f *eventsFake) PublishPackageEvent(_ context.Context, event domain.PackageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *eventsFake) types() []domain.PackageEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PackageEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type observerFake struct {
	mu      sync.Mutex
	polls   map[string]int
	settled []domain.UploadState
}

func (f *observerFake) ObservePoll(outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[outcome]++
}

func (f *observerFake) ObserveUploadSettled(state domain.UploadState, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, state)
}

func twoFiles() []domain.UploadFile {
	return []domain.UploadFile{
		{Name: "invoice-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 one")},
		{Name: "invoice-2.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 two")},
	}
}
