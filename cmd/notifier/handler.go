package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const serviceName = "notifier"

type eventMetrics interface {
	StartEvent()
	FinishEvent(service, eventType string, duration time.Duration, err error)
	ObserveEventLag(service string, lag time.Duration)
}

// newEventHandler reports each lifecycle event as one log line. Unknown
// event types are rejected so they show up as handler failures.
func newEventHandler(logger *slog.Logger, m eventMetrics, now func() time.Time) func(context.Context, domain.PackageEvent) error {
	return func(ctx context.Context, event domain.PackageEvent) (err error) {
		start := now()
		m.StartEvent()
		defer func() {
			m.FinishEvent(serviceName, string(event.Type), now().Sub(start), err)
		}()
		if !event.OccurredAt.IsZero() {
			m.ObserveEventLag(serviceName, start.Sub(event.OccurredAt))
		}

		attrs := []any{
			"type", string(event.Type),
			"package_id", event.PackageID,
			"package_name", event.PackageName,
			"status", event.Status,
		}
		switch event.Type {
		case domain.EventSubmitted:
			logger.InfoContext(ctx, "package_submitted", attrs...)
		case domain.EventStatusChanged:
			logger.InfoContext(ctx, "package_status_changed", attrs...)
		case domain.EventReady:
			logger.InfoContext(ctx, "package_ready", attrs...)
		case domain.EventFailed:
			logger.WarnContext(ctx, "package_failed", append(attrs, "message", event.Message)...)
		default:
			return fmt.Errorf("unknown package event type %q", event.Type)
		}
		return nil
	}
}
