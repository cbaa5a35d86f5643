package domain

import "time"

// Requester identifies who raised a ticket.
type Requester struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	UserID string `json:"user_id,omitempty"`
}

// TicketRequest is a raw support request as submitted. It is not modified
// once handed to the intake pipeline.
type TicketRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Requester       Requester `json:"requester"`
	InitialPriority string    `json:"initial_priority"`
	DueDate         string    `json:"due_date"`
}

// AssignmentStatus describes the outcome reported by the assignment step.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "Assigned"
	AssignmentStatusEscalated AssignmentStatus = "Escalated"
	AssignmentStatusFailed    AssignmentStatus = "Assignment Failed"
)

// Assignment is the technician chosen for a ticket.
type Assignment struct {
	TechnicianName  string           `json:"assigned_technician"`
	TechnicianEmail string           `json:"technician_email"`
	Status          AssignmentStatus `json:"status"`
	Score           float64          `json:"score"`
	Reasoning       string           `json:"reasoning,omitempty"`
	AssignedAt      time.Time        `json:"assigned_at"`
}

// TicketRecord is the aggregate produced by one intake pipeline run.
type TicketRecord struct {
	TicketNumber   string         `json:"ticket_number"`
	Request        TicketRequest  `json:"request"`
	Metadata       Metadata       `json:"metadata"`
	Classification Classification `json:"classification"`
	SimilarTickets []string       `json:"similar_tickets"`
	ResolutionNote string         `json:"resolution_note"`
	Assignment     Assignment     `json:"assignment"`
	Notified       bool           `json:"notified"`
	CreatedAt      time.Time      `json:"created_at"`
}
