package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

const (
	maxPageSize = 100
	maxPage     = 10000
)

// TicketsHandler serves ticket submission and lookup.
type TicketsHandler struct {
	service *service.IntakeService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(intake *service.IntakeService) *TicketsHandler {
	return &TicketsHandler{service: intake}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.service.ProcessNewTicket(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketDetail(record)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}
	records, err := h.service.ListTickets(c.UserContext(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(records))
	for i := range records {
		items = append(items, ticketSummary(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:number.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	record, err := h.service.GetTicket(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(record)})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(record *domain.TicketRecord) dto.TicketSummary {
	return dto.TicketSummary{
		TicketNumber:       record.TicketNumber,
		Title:              record.Request.Title,
		IssueType:          record.Classification.Get(domain.FieldIssueType).Label,
		Priority:           record.Classification.Get(domain.FieldPriority).Label,
		Status:             record.Classification.Get(domain.FieldStatus).Label,
		AssignedTechnician: record.Assignment.TechnicianName,
		CreatedAt:          record.CreatedAt,
	}
}

func ticketDetail(record *domain.TicketRecord) dto.TicketDetailResponse {
	similar := record.SimilarTickets
	if similar == nil {
		similar = []string{}
	}
	return dto.TicketDetailResponse{
		TicketNumber:   record.TicketNumber,
		Title:          record.Request.Title,
		Description:    record.Request.Description,
		Requester:      record.Request.Requester,
		DueDate:        record.Request.DueDate,
		Metadata:       record.Metadata,
		Classification: record.Classification,
		SimilarTickets: similar,
		ResolutionNote: record.ResolutionNote,
		Assignment:     record.Assignment,
		Notified:       record.Notified,
		CreatedAt:      record.CreatedAt,
	}
}
