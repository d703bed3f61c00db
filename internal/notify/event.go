// Package notify fans committed workflow transitions out to observers.
//
// Delivery is best-effort and at-least-once. Observers must treat events as a
// refresh hint and re-read state from the store.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed transition.
type EventType string

const (
	ApplicationCreated EventType = "application_created"
	DepartmentDecided  EventType = "department_decided"
	Reapplied          EventType = "reapplied"
	ManualReviewed     EventType = "manual_reviewed"
	CertificateChanged EventType = "certificate_changed"
)

// Event is the payload published after a transaction commits.
type Event struct {
	ID               string    `json:"id"`
	Type             EventType `json:"type"`
	ApplicationID    string    `json:"application_id"`
	RegistrationNo   string    `json:"registration_no"`
	Departments      []string  `json:"departments,omitempty"`
	AggregateStatus  string    `json:"aggregate_status"`
	CertificateState string    `json:"certificate_state"`
	Actor            string    `json:"actor,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(t EventType, applicationID string, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		ApplicationID: applicationID,
		OccurredAt:    at.UTC(),
	}
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
