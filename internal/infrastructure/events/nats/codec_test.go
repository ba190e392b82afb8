package nats

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

func TestEventRoundTripCarriesHeaders(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	msg, err := encodeEvent("packages.events", domain.PackageEvent{
		Type:        domain.EventReady,
		PackageID:   "abc123",
		PackageName: "Invoice Batch",
		Status:      "Complete",
		OccurredAt:  at,
	})
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	if msg.Subject != "packages.events" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.Header.Get(headerEventType) != string(domain.EventReady) || msg.Header.Get(headerPackageID) != "abc123" {
		t.Fatalf("unexpected headers %v", msg.Header)
	}

	event, err := decodeEvent(msg)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if event.PackageID != "abc123" || event.Type != domain.EventReady || event.Status != "Complete" {
		t.Fatalf("unexpected event %+v", event)
	}
	if !event.OccurredAt.Equal(at) {
		t.Fatalf("expected %v, got %v", at, event.OccurredAt)
	}
}

func TestEncodeRejectsMissingPackageID(t *testing.T) {
	_, err := encodeEvent("s", domain.PackageEvent{Type: domain.EventSubmitted})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeFallsBackToHeaders(t *testing.T) {
	msg := nats.NewMsg("s")
	msg.Data = []byte(`{"message":"hello"}`)
	msg.Header.Set(headerEventType, string(domain.EventFailed))
	msg.Header.Set(headerPackageID, "p9")

	event, err := decodeEvent(msg)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if event.Type != domain.EventFailed || event.PackageID != "p9" || event.Message != "hello" {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := decodeEvent(&nats.Msg{Data: []byte(`{}`)}); err == nil {
		t.Fatalf("expected error without package id")
	}
}

func TestConnectionErrorsAreTemporary(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrConnectionClosed)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); got != plain {
		t.Fatalf("expected error unchanged, got %v", got)
	}
}
