package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, recipient string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Recipient: recipient,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// PasswordResetRequestedPayload carries the link the recipient must follow.
type PasswordResetRequestedPayload struct {
	ResetLink string    `json:"reset_link"`
	ExpiresAt time.Time `json:"expires_at"`
}
