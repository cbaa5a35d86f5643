package events

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketEscalated EventType = "ticket_escalated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketNumber string      `json:"ticket_number"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title          string           `json:"title"`
	Requester      domain.Requester `json:"requester"`
	Priority       string           `json:"priority"`
	IssueType      string           `json:"issue_type"`
	ResolutionNote string           `json:"resolution_note"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Title      string            `json:"title"`
	Requester  domain.Requester  `json:"requester"`
	Priority   string            `json:"priority"`
	Assignment domain.Assignment `json:"assignment"`
}

// TicketEscalatedPayload payload. Reason is human readable.
type TicketEscalatedPayload struct {
	Title      string            `json:"title"`
	Priority   string            `json:"priority"`
	Reason     string            `json:"reason"`
	Assignment domain.Assignment `json:"assignment"`
}
