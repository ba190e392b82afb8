package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
	"github.com/kirillkom/formpack-portal/internal/core/ports"
)

const (
	DefaultPollInterval       = 2 * time.Second
	DefaultPollRequestTimeout = 10 * time.Second
)

// StatusPoller asks the backend for a package's status on a fixed interval
// until the status is terminal, a request fails, or ctx is cancelled.
//
// Requests are issued from the loop goroutine, so at most one is in flight;
// ticks that fire during a slow request are coalesced by the ticker.
type StatusPoller struct {
	backend        ports.PackageBackend
	interval       time.Duration
	requestTimeout time.Duration
	observer       ports.UploadObserver
}

func NewStatusPoller(backend ports.PackageBackend, interval, requestTimeout time.Duration, observer ports.UploadObserver) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultPollRequestTimeout
	}
	return &StatusPoller{
		backend:        backend,
		interval:       interval,
		requestTimeout: requestTimeout,
		observer:       observer,
	}
}

// Run polls packageID and calls onReading after every successful request,
// including the terminal one. There is no retry: the first failed request
// ends the loop with its error.
func (p *StatusPoller) Run(ctx context.Context, packageID string, onReading func(domain.StatusReading)) (domain.StatusReading, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.StatusReading{}, ctx.Err()
		case <-ticker.C:
		}

		reading, err := p.pollOnce(ctx, packageID)
		if err != nil {
			if ctx.Err() != nil {
				return domain.StatusReading{}, ctx.Err()
			}
			return domain.StatusReading{}, fmt.Errorf("poll package %s: %w", packageID, err)
		}
		if onReading != nil {
			onReading(reading)
		}
		if reading.Status.IsTerminal() {
			return reading, nil
		}
	}
}

func (p *StatusPoller) pollOnce(ctx context.Context, packageID string) (domain.StatusReading, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	start := time.Now()
	reading, err := p.backend.GetPackageStatus(reqCtx, packageID)
	if p.observer != nil {
		outcome := "in_progress"
		switch {
		case err != nil:
			outcome = "error"
		case reading.Status.IsTerminal():
			outcome = "terminal"
		case reading.Status == domain.StatusUnknown:
			outcome = "unknown"
		}
		p.observer.ObservePoll(outcome, time.Since(start))
	}
	return reading, err
}
