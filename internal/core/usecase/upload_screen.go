package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/notify"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
)

var ErrScreenClosed = errors.New("upload screen closed")

const sideEffectTimeout = 5 * time.Second

type UploadScreenOptions struct {
	PollInterval       time.Duration
	PollRequestTimeout time.Duration
	NotificationTTL    time.Duration

	Inspector ports.FileInspector
	Events    ports.EventPublisher
	History   ports.UploadHistory
	Observer  ports.UploadObserver
	Logger    *slog.Logger
}

// UploadScreen is one upload component instance. It owns at most one poll
// task; the task is cancelled by a terminal status, a poll failure, a new
// submission, or Close.
type UploadScreen struct {
	backend   ports.PackageBackend
	poller    *StatusPoller
	notifier  *notify.Center
	inspector ports.FileInspector
	events    ports.EventPublisher
	history   ports.UploadHistory
	observer  ports.UploadObserver
	logger    *slog.Logger

	lifetime      context.Context
	closeLifetime context.CancelFunc

	mu         sync.Mutex
	snap       domain.UploadSnapshot
	generation uint64
	cancelPoll context.CancelFunc
	done       chan struct{}
	closed     bool
}

func NewUploadScreen(backend ports.PackageBackend, opts UploadScreenOptions) *UploadScreen {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifetime, closeLifetime := context.WithCancel(context.Background())
	return &UploadScreen{
		backend:       backend,
		poller:        NewStatusPoller(backend, opts.PollInterval, opts.PollRequestTimeout, opts.Observer),
		notifier:      notify.NewCenter(opts.NotificationTTL),
		inspector:     opts.Inspector,
		events:        opts.Events,
		history:       opts.History,
		observer:      opts.Observer,
		logger:        logger,
		lifetime:      lifetime,
		closeLifetime: closeLifetime,
		snap:          domain.UploadSnapshot{State: domain.UploadIdle},
	}
}

// Submit creates the package and starts polling its status. It returns once
// the backend has assigned an identifier; polling continues in the background.
func (s *UploadScreen) Submit(ctx context.Context, name string, files []domain.UploadFile) (string, error) {
	if len(files) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "submit package", errors.New("at least one file is required"))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrScreenClosed
	}
	var replaced string
	if s.snap.State == domain.UploadPolling {
		replaced = s.snap.PackageID
	}
	s.stopPollLocked()
	s.generation++
	gen := s.generation
	s.snap = domain.UploadSnapshot{
		State:       domain.UploadSubmitting,
		Loading:     true,
		PackageName: name,
		Files:       s.summarize(files),
		SubmittedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	if replaced != "" {
		s.markReplaced(ctx, replaced)
	}

	packageID, err := s.backend.CreatePackage(ctx, name, files)
	if err != nil {
		s.logger.Error("upload_create_failed", "package_name", name, "files", len(files), "error", err)
		s.settle(gen, domain.UploadFailed, err, domain.NotificationCreateFailed)
		return "", fmt.Errorf("create package: %w", err)
	}

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return packageID, nil
	}
	pollCtx, cancel := context.WithCancel(s.lifetime)
	done := make(chan struct{})
	s.snap.State = domain.UploadPolling
	s.snap.PackageID = packageID
	s.cancelPoll = cancel
	s.done = done
	submittedAt := s.snap.SubmittedAt
	s.mu.Unlock()

	s.logger.Info("upload_submitted", "package_id", packageID, "package_name", name, "files", len(files))
	s.recordSubmission(ctx, domain.UploadRecord{
		PackageID:   packageID,
		PackageName: name,
		FileCount:   len(files),
		Outcome:     domain.UploadPolling,
		SubmittedAt: submittedAt,
	})
	s.publish(ctx, domain.PackageEvent{
		Type:        domain.EventSubmitted,
		PackageID:   packageID,
		PackageName: name,
	})

	go s.pollLoop(pollCtx, gen, packageID, done)
	return packageID, nil
}

func (s *UploadScreen) pollLoop(ctx context.Context, gen uint64, packageID string, done chan struct{}) {
	defer close(done)

	_, err := s.poller.Run(ctx, packageID, func(reading domain.StatusReading) {
		s.applyReading(ctx, gen, reading)
	})
	switch {
	case err == nil:
		s.settle(gen, domain.UploadSucceeded, nil, domain.NotificationPackageReady)
	case ctx.Err() != nil:
		s.settle(gen, domain.UploadCancelled, nil, domain.Notification{})
	default:
		s.logger.Error("status_poll_failed", "package_id", packageID, "error", err)
		s.settle(gen, domain.UploadFailed, err, domain.NotificationPollFailed)
	}
}

func (s *UploadScreen) applyReading(ctx context.Context, gen uint64, reading domain.StatusReading) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	changed := s.snap.Polls == 0 || s.snap.StatusText != reading.Text
	s.snap.Polls++
	s.snap.Status = reading.Status
	s.snap.StatusText = reading.Text
	packageID, name, polls := s.snap.PackageID, s.snap.PackageName, s.snap.Polls
	s.mu.Unlock()

	s.logger.Debug("status_polled", "package_id", packageID, "status", reading.Text, "poll", polls)
	if reading.Status == domain.StatusUnknown {
		s.logger.Warn("status_unrecognized", "package_id", packageID, "status", reading.Text)
	}
	if changed && !reading.Status.IsTerminal() {
		s.publish(ctx, domain.PackageEvent{
			Type:        domain.EventStatusChanged,
			PackageID:   packageID,
			PackageName: name,
			Status:      reading.Text,
		})
	}
}

func (s *UploadScreen) settle(gen uint64, state domain.UploadState, cause error, note domain.Notification) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	s.snap.State = state
	s.snap.Loading = false
	s.snap.SettledAt = now
	if cause != nil {
		s.snap.Error = cause.Error()
	}
	s.cancelPoll = nil
	snap := s.snap
	s.mu.Unlock()

	if note.Title != "" {
		s.notifier.Show(note)
	}
	if s.observer != nil {
		s.observer.ObserveUploadSettled(state, now.Sub(snap.SubmittedAt))
	}
	s.logger.Info("upload_settled",
		"package_id", snap.PackageID,
		"state", string(state),
		"polls", snap.Polls,
		"duration_ms", float64(now.Sub(snap.SubmittedAt).Microseconds())/1000.0,
	)
	if snap.PackageID == "" {
		return
	}

	ctx := context.Background()
	if s.history != nil {
		hctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
		if err := s.history.UpdateOutcome(hctx, snap.PackageID, state, snap.Error); err != nil {
			s.logger.Warn("upload_history_update_failed", "package_id", snap.PackageID, "error", err)
		}
		cancel()
	}

	event := domain.PackageEvent{PackageID: snap.PackageID, PackageName: snap.PackageName, Status: snap.StatusText}
	switch state {
	case domain.UploadSucceeded:
		event.Type = domain.EventReady
		event.Message = note.Description
	case domain.UploadFailed:
		event.Type = domain.EventFailed
		event.Message = snap.Error
	default:
		return
	}
	s.publish(ctx, event)
}

// Snapshot returns a copy of the screen state with the visible notification.
func (s *UploadScreen) Snapshot() domain.UploadSnapshot {
	s.mu.Lock()
	snap := s.snap
	snap.Files = append([]domain.FileSummary(nil), s.snap.Files...)
	s.mu.Unlock()

	if n, ok := s.notifier.Current(); ok {
		snap.Notification = &n
	}
	return snap
}

// Wait blocks until the current poll task, if any, has exited.
func (s *UploadScreen) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the screen down: the poll task is cancelled and awaited, and
// the notification slot is cleared.
func (s *UploadScreen) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	done := s.done
	s.mu.Unlock()

	s.closeLifetime()
	if done != nil {
		<-done
	}
	s.notifier.Close()
}

func (s *UploadScreen) stopPollLocked() {
	if s.cancelPoll != nil {
		s.cancelPoll()
		s.cancelPoll = nil
	}
}

func (s *UploadScreen) summarize(files []domain.UploadFile) []domain.FileSummary {
	out := make([]domain.FileSummary, 0, len(files))
	for _, file := range files {
		if s.inspector != nil {
			out = append(out, s.inspector.Inspect(file))
			continue
		}
		out = append(out, domain.FileSummary{Name: file.Name, Size: int64(len(file.Data))})
	}
	return out
}

func (s *UploadScreen) recordSubmission(ctx context.Context, record domain.UploadRecord) {
	if s.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.history.RecordSubmission(hctx, record); err != nil {
		s.logger.Warn("upload_history_record_failed", "package_id", record.PackageID, "error", err)
	}
}

// markReplaced settles the history entry of a submission whose polling was
// abandoned for a newer one.
func (s *UploadScreen) markReplaced(ctx context.Context, packageID string) {
	s.logger.Info("upload_replaced", "package_id", packageID)
	if s.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.history.UpdateOutcome(hctx, packageID, domain.UploadCancelled, ""); err != nil {
		s.logger.Warn("upload_history_update_failed", "package_id", packageID, "error", err)
	}
}

func (s *UploadScreen) publish(ctx context.Context, event domain.PackageEvent) {
	if s.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.events.PublishPackageEvent(pctx, event); err != nil {
		s.logger.Warn("package_event_publish_failed", "package_id", event.PackageID, "type", string(event.Type), "error", err)
	}
}
