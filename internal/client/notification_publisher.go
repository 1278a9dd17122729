package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crou-platform/be-validations/internal/domain"
	natsclient "github.com/crou-platform/be-validations/internal/platform/nats"
)

// NotificationPublisher publishes validation workflow events to NATS JetStream
// for consumption by the notifications service.
//
// Subject convention: validations.<module>.<event_type>
// Event types: submitted, approval_required, approved, rejected, delegated,
//              escalated, cancelled, expired
//
// All publish operations are non-fatal — errors are logged but never propagated
// to the caller, so notification failures never interrupt validation operations.
type NotificationPublisher struct {
	nats *natsclient.Client
	log  zerolog.Logger
}

// WorkflowEvent is the JSON schema published to NATS.
type WorkflowEvent struct {
	EventType  string         `json:"event_type"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	InstanceID uuid.UUID      `json:"instance_id"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Module     string         `json:"module"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Recipients []uuid.UUID    `json:"recipients,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS client.
// A nil client disables publishing.
func NewNotificationPublisher(nats *natsclient.Client, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// PublishWorkflowEvent publishes one validation event.
// Subject: validations.<module>.<eventType>
func (p *NotificationPublisher) PublishWorkflowEvent(ctx context.Context, eventType string, module domain.Module, in *domain.WorkflowInstance, actorID uuid.UUID, recipients []uuid.UUID, payload map[string]any) {
	if p.nats == nil {
		return
	}

	event := &WorkflowEvent{
		EventType:  eventType,
		TenantID:   in.TenantID,
		InstanceID: in.ID,
		EntityType: string(in.Entity.Type),
		EntityID:   in.Entity.ID,
		Module:     string(module),
		ActorID:    actorID,
		Recipients: recipients,
		Payload:    payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("validations.%s.%s", module, eventType)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("instance_id", in.ID.String()).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("instance_id", in.ID.String()).
		Msg("notification: event published")
}
