package domain

import (
	"context"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRequestCreated   EventType = "request.created"
	EventRequestAccepted  EventType = "request.accepted"
	EventRequestRejected  EventType = "request.rejected"
	EventRequestCompleted EventType = "request.completed"
	EventRequestCancelled EventType = "request.cancelled"
	EventRequestRated     EventType = "request.rated"
)

// Event describes a request lifecycle change delivered to one user.
type Event struct {
	Type    EventType `json:"type"`
	ActorID uuid.UUID `json:"actorId"`
	Request *Request  `json:"request"`
}

// Notifier delivers lifecycle events. Delivery is best-effort: Notify must not
// block on the network and has no way to fail the originating operation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, Event) {}
