package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const (
	headerEventType = "Package-Event-Type"
	headerPackageID = "Package-Id"
)

func encodeEvent(subject string, event domain.PackageEvent) (*nats.Msg, error) {
	if event.PackageID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode package event", fmt.Errorf("package id is empty"))
	}
	event.OccurredAt = event.OccurredAt.UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal package event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(headerEventType, string(event.Type))
	msg.Header.Set(headerPackageID, event.PackageID)
	return msg, nil
}

// decodeEvent falls back to headers for members missing from the body.
func decodeEvent(msg *nats.Msg) (domain.PackageEvent, error) {
	var event domain.PackageEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return domain.PackageEvent{}, fmt.Errorf("unmarshal package event: %w", err)
	}
	if msg.Header != nil {
		if event.Type == "" {
			event.Type = domain.PackageEventType(msg.Header.Get(headerEventType))
		}
		if event.PackageID == "" {
			event.PackageID = msg.Header.Get(headerPackageID)
		}
	}
	if event.PackageID == "" {
		return domain.PackageEvent{}, fmt.Errorf("package event without package id")
	}
	return event, nil
}
