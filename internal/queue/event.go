// Package queue defines the session events exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle transition.
type EventType string

const (
	EventUserRegistered   EventType = "user.registered"
	EventUserLoggedIn     EventType = "user.login"
	EventSessionRefreshed EventType = "session.refreshed"
	EventSessionRevoked   EventType = "session.revoked"
	EventPasswordChanged  EventType = "password.changed"
)

// AuthEvent is published after a successful identity operation.  It never
// carries credentials or token material.  Downstream consumers (the e-mail
// verification sender, the audit log) key on Type.
type AuthEvent struct {
	Type       EventType `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	Roles      []string  `json:"roles,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
