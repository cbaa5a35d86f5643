package dto

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// RequesterPayload identifies the person raising the ticket.
type RequesterPayload struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	UserID string `json:"user_id"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Requester       RequesterPayload `json:"requester"`
	InitialPriority string           `json:"initial_priority"`
	DueDate         string           `json:"due_date"`
}

// ToDomain converts the payload to a pipeline request.
func (r CreateTicketRequest) ToDomain() domain.TicketRequest {
	return domain.TicketRequest{
		Title:       r.Title,
		Description: r.Description,
		Requester: domain.Requester{
			Name:   r.Requester.Name,
			Email:  r.Requester.Email,
			Phone:  r.Requester.Phone,
			UserID: r.Requester.UserID,
		},
		InitialPriority: r.InitialPriority,
		DueDate:         r.DueDate,
	}
}

// TicketSummary response.
type TicketSummary struct {
	TicketNumber       string    `json:"ticket_number"`
	Title              string    `json:"title"`
	IssueType          string    `json:"issue_type"`
	Priority           string    `json:"priority"`
	Status             string    `json:"status"`
	AssignedTechnician string    `json:"assigned_technician"`
	CreatedAt          time.Time `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketNumber   string                             `json:"ticket_number"`
	Title          string                             `json:"title"`
	Description    string                             `json:"description"`
	Requester      domain.Requester                   `json:"requester"`
	DueDate        string                             `json:"due_date,omitempty"`
	Metadata       domain.Metadata                    `json:"metadata"`
	Classification map[domain.Field]domain.FieldValue `json:"classification"`
	SimilarTickets []string                           `json:"similar_tickets"`
	ResolutionNote string                             `json:"resolution_note"`
	Assignment     domain.Assignment                  `json:"assignment"`
	Notified       bool                               `json:"notified"`
	CreatedAt      time.Time                          `json:"created_at"`
}

// CatalogOption is one code/label pair.
type CatalogOption struct {
	Value string `json:"Value"`
	Label string `json:"Label"`
}

// LabelLookupResponse answers a label to code lookup.
type LabelLookupResponse struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Value string `json:"Value"`
}
