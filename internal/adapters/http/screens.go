package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
)

const defaultScreenIdleTTL = 30 * time.Minute

// ScreenFactory builds a fresh upload screen.
type ScreenFactory func() ports.PackageUploader

// ScreenRegistry owns the open upload screens. A screen that is not touched
// for the idle TTL is closed, which cancels its poll task.
type ScreenRegistry struct {
	factory  ScreenFactory
	idleTTL  time.Duration
	now      func() time.Time
	onChange func(open int)
	logger   *slog.Logger

	mu      sync.Mutex
	screens map[string]*screenEntry
	closed  bool
}

type screenEntry struct {
	screen   ports.PackageUploader
	lastSeen time.Time
}

func NewScreenRegistry(factory ScreenFactory, idleTTL time.Duration, onChange func(open int), logger *slog.Logger) *ScreenRegistry {
	if idleTTL <= 0 {
		idleTTL = defaultScreenIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenRegistry{
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
		onChange: onChange,
		logger:   logger,
		screens:  make(map[string]*screenEntry),
	}
}

func (r *ScreenRegistry) Open() (string, ports.PackageUploader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", nil, domain.WrapError(domain.ErrTemporary, "open screen", context.Canceled)
	}

	id := uuid.NewString()
	screen := r.factory()
	r.screens[id] = &screenEntry{screen: screen, lastSeen: r.now()}
	r.notifyLocked()
	r.logger.Debug("upload_screen_opened", "screen_id", id)
	return id, screen, nil
}

// Get returns the screen and marks it as recently used.
func (r *ScreenRegistry) Get(id string) (ports.PackageUploader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.screens[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrScreenNotFound, "get screen", fmt.Errorf("id=%s", id))
	}
	entry.lastSeen = r.now()
	return entry.screen, nil
}

func (r *ScreenRegistry) Close(id string) error {
	r.mu.Lock()
	entry, ok := r.screens[id]
	if ok {
		delete(r.screens, id)
		r.notifyLocked()
	}
	r.mu.Unlock()

	if !ok {
		return domain.WrapError(domain.ErrScreenNotFound, "close screen", fmt.Errorf("id=%s", id))
	}
	entry.screen.Close()
	r.logger.Debug("upload_screen_closed", "screen_id", id)
	return nil
}

// Sweep closes screens idle for longer than the TTL and returns how many it
// closed.
func (r *ScreenRegistry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []ports.PackageUploader
	for id, entry := range r.screens {
		if entry.lastSeen.Before(cutoff) {
			stale = append(stale, entry.screen)
			delete(r.screens, id)
		}
	}
	if len(stale) > 0 {
		r.notifyLocked()
	}
	r.mu.Unlock()

	for _, screen := range stale {
		screen.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("upload_screens_expired", "count", len(stale))
	}
	return len(stale)
}

// RunSweeper sweeps every interval until ctx is done.
func (r *ScreenRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idleTTL / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll closes every screen; later Open calls fail.
func (r *ScreenRegistry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	screens := make([]ports.PackageUploader, 0, len(r.screens))
	for id, entry := range r.screens {
		screens = append(screens, entry.screen)
		delete(r.screens, id)
	}
	r.notifyLocked()
	r.mu.Unlock()

	for _, screen := range screens {
		screen.Close()
	}
}

func (r *ScreenRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.screens)
}

func (r *ScreenRegistry) notifyLocked() {
	if r.onChange != nil {
		r.onChange(len(r.screens))
	}
}
