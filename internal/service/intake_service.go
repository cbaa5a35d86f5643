package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/sequence"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// Stage is a step of the intake pipeline.
type Stage string

const (
	StageInit               Stage = "INIT"
	StageNumbered           Stage = "NUMBERED"
	StageMetadataExtracted  Stage = "METADATA_EXTRACTED"
	StageSimilaritySearched Stage = "SIMILARITY_SEARCHED"
	StageClassified         Stage = "CLASSIFIED"
	StageResolutionDrafted  Stage = "RESOLUTION_DRAFTED"
	StageAssigned           Stage = "ASSIGNED"
	StageNotified           Stage = "NOTIFIED"
	StageDone               Stage = "DONE"
)

// Collaborator contracts used by the pipeline.
type (
	NumberAllocator interface {
		Next(ctx context.Context) (string, error)
	}
	MetadataExtractor interface {
		Extract(ctx context.Context, title, description string) (domain.Metadata, error)
	}
	SimilarityFinder interface {
		FindSimilar(ctx context.Context, title, description string, topN int) ([]domain.SimilarTicket, error)
	}
	TicketClassifier interface {
		Classify(ctx context.Context, req domain.TicketRequest, meta domain.Metadata, similar []domain.SimilarTicket) domain.Classification
	}
	ResolutionDrafter interface {
		Draft(ctx context.Context, req domain.TicketRequest, cls domain.Classification, meta domain.Metadata) string
	}
)

// IntakeService runs the intake pipeline and serves processed tickets.
type IntakeService struct {
	allocator  NumberAllocator
	extractor  MetadataExtractor
	similarity SimilarityFinder
	classifier TicketClassifier
	drafter    ResolutionDrafter
	assigner   Assigner
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	topN       int
	fallback   config.AssignmentConfig
	now        func() time.Time
}

// IntakeDependencies bundles collaborators. Assigner, Tickets, Dispatcher
// and Metrics are optional.
type IntakeDependencies struct {
	Allocator  NumberAllocator
	Extractor  MetadataExtractor
	Similarity SimilarityFinder
	Classifier TicketClassifier
	Drafter    ResolutionDrafter
	Assigner   Assigner
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	TopN       int
	Assignment config.AssignmentConfig
	Now        func() time.Time
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &IntakeService{
		allocator:  deps.Allocator,
		extractor:  deps.Extractor,
		similarity: deps.Similarity,
		classifier: deps.Classifier,
		drafter:    deps.Drafter,
		assigner:   deps.Assigner,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		topN:       deps.TopN,
		fallback:   deps.Assignment,
		now:        now,
	}
}

// pipelineRun is the state of one ProcessNewTicket call.
type pipelineRun struct {
	stage   Stage
	started time.Time
	record  *domain.TicketRecord
	logger  *zap.Logger
	metrics *observability.Metrics
}

func (r *pipelineRun) advance(stage Stage, outcome string, fields ...zap.Field) {
	r.stage = stage
	r.metrics.RecordStage(string(stage), outcome)
	fields = append(fields, zap.String("stage", string(stage)), zap.String("outcome", outcome))
	r.logger.Debug("pipeline stage", fields...)
}

// ProcessNewTicket turns a raw request into a classified, assigned ticket.
// Only a failed metadata extraction or a cancelled context aborts the run;
// every later failure is replaced by a degraded value.
func (s *IntakeService) ProcessNewTicket(ctx context.Context, req domain.TicketRequest) (*domain.TicketRecord, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return nil, apperrors.NewValidationError("title or description is required", nil)
	}

	run := &pipelineRun{
		stage:   StageInit,
		started: s.now(),
		record:  &domain.TicketRecord{Request: req},
		logger:  s.logger,
		metrics: s.metrics,
	}

	number, err := s.allocator.Next(ctx)
	if err != nil {
		run.advance(StageNumbered, "failed", zap.Error(err))
		return nil, fmt.Errorf("allocating ticket number: %w", err)
	}
	run.record.TicketNumber = number
	run.logger = s.logger.With(zap.String("ticket_number", number))
	run.advance(StageNumbered, "ok")

	meta, err := s.extractor.Extract(ctx, req.Title, req.Description)
	if err != nil {
		run.advance(StageMetadataExtracted, "failed", zap.Error(err))
		run.logger.Error("metadata extraction failed, aborting", zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, ErrExtraction) {
			err = fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return nil, apperrors.NewExtractionFailed(err)
	}
	meta.Status = domain.MetadataStatusOpen
	run.record.Metadata = meta
	run.advance(StageMetadataExtracted, "ok")

	similar, err := s.similarity.FindSimilar(ctx, req.Title, req.Description, s.topN)
	if err != nil {
		run.advance(StageSimilaritySearched, "failed", zap.Error(err))
		return nil, err
	}
	run.record.SimilarTickets = make([]string, 0, len(similar))
	for _, t := range similar {
		run.record.SimilarTickets = append(run.record.SimilarTickets, t.TicketNumber)
	}
	run.advance(StageSimilaritySearched, "ok", zap.Int("similar", len(similar)))

	run.record.Classification = s.classifier.Classify(ctx, req, meta, similar)
	run.advance(StageClassified, "ok")

	run.record.ResolutionNote = s.drafter.Draft(ctx, req, run.record.Classification, meta)
	draftOutcome := "ok"
	if run.record.ResolutionNote == ResolutionFallback {
		draftOutcome = "degraded"
	}
	run.advance(StageResolutionDrafted, draftOutcome)

	run.record.Assignment = s.assign(ctx, run)
	run.record.CreatedAt = s.now()

	run.record.Notified = s.notify(ctx, run)

	if s.tickets != nil {
		if err := s.tickets.Create(ctx, run.record); err != nil {
			run.logger.Error("persisting ticket failed", zap.Error(err))
			s.metrics.RecordStage("PERSISTED", "failed")
		}
	}

	run.advance(StageDone, "ok", zap.Duration("elapsed", s.now().Sub(run.started)))
	run.logger.Info("ticket processed",
		zap.String("issue_type", run.record.Classification.Get(domain.FieldIssueType).Label),
		zap.String("priority", run.record.Classification.Get(domain.FieldPriority).Label),
		zap.String("technician", run.record.Assignment.TechnicianName))
	return run.record, nil
}

func (s *IntakeService) assign(ctx context.Context, run *pipelineRun) domain.Assignment {
	placeholder := domain.Assignment{
		TechnicianName:  s.fallback.FallbackName,
		TechnicianEmail: s.fallback.FallbackEmail,
		Status:          domain.AssignmentStatusFailed,
		AssignedAt:      s.now(),
	}
	if s.assigner == nil {
		run.advance(StageAssigned, "degraded")
		return placeholder
	}
	assignment, err := s.assigner.Assign(ctx, run.record)
	if err != nil {
		run.logger.Warn("assignment failed, using placeholder", zap.Error(err))
		run.advance(StageAssigned, "degraded")
		return placeholder
	}
	run.advance(StageAssigned, "ok", zap.String("technician", assignment.TechnicianName))
	return assignment
}

// notify publishes the ticket events. It reports whether every handler
// succeeded.
func (s *IntakeService) notify(ctx context.Context, run *pipelineRun) bool {
	if s.dispatcher == nil {
		run.advance(StageNotified, "skipped")
		return false
	}
	record := run.record
	priority := record.Classification.Get(domain.FieldPriority).Label

	evts := []events.Event{s.event(events.EventTicketCreated, record, events.TicketCreatedPayload{
		Title:          record.Request.Title,
		Requester:      record.Request.Requester,
		Priority:       priority,
		IssueType:      record.Classification.Get(domain.FieldIssueType).Label,
		ResolutionNote: record.ResolutionNote,
	})}
	if record.Assignment.Status == domain.AssignmentStatusAssigned {
		evts = append(evts, s.event(events.EventTicketAssigned, record, events.TicketAssignedPayload{
			Title:      record.Request.Title,
			Requester:  record.Request.Requester,
			Priority:   priority,
			Assignment: record.Assignment,
		}))
	}
	if reason := escalationReason(priority, record.Assignment.Status); reason != "" {
		evts = append(evts, s.event(events.EventTicketEscalated, record, events.TicketEscalatedPayload{
			Title:      record.Request.Title,
			Priority:   priority,
			Reason:     reason,
			Assignment: record.Assignment,
		}))
	}

	ok := true
	for _, evt := range evts {
		if err := s.dispatcher.Publish(ctx, evt); err != nil {
			ok = false
			run.logger.Warn("notification failed", zap.String("event_type", string(evt.Type)), zap.Error(err))
		}
	}
	if ok {
		run.advance(StageNotified, "ok")
	} else {
		run.advance(StageNotified, "degraded")
	}
	return ok
}

func (s *IntakeService) event(typ events.EventType, record *domain.TicketRecord, payload any) events.Event {
	return events.Event{
		ID:           uuid.NewString(),
		Type:         typ,
		TicketNumber: record.TicketNumber,
		Timestamp:    s.now(),
		Payload:      payload,
	}
}

// escalationReason returns why a manager should hear about the ticket, or
// "" when no escalation is due.
func escalationReason(priority string, status domain.AssignmentStatus) string {
	switch {
	case status == domain.AssignmentStatusFailed:
		return "automatic assignment failed"
	case status == domain.AssignmentStatusEscalated:
		return "no suitable technician available"
	case strings.EqualFold(priority, "Critical"), strings.EqualFold(priority, "High"):
		return priority + " priority ticket"
	}
	return ""
}

// GetTicket returns a processed ticket by number.
func (s *IntakeService) GetTicket(ctx context.Context, number string) (*domain.TicketRecord, error) {
	if _, _, err := sequence.Parse(number); err != nil {
		return nil, apperrors.NewValidationError("invalid ticket number", map[string]any{"ticket_number": number})
	}
	if s.tickets == nil {
		return nil, apperrors.NewServiceUnavailable("ticket store not configured", nil)
	}
	record, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_number": number})
		}
		return nil, apperrors.MapError(err)
	}
	return record, nil
}

// ListTickets returns the most recent processed tickets.
func (s *IntakeService) ListTickets(ctx context.Context, limit, offset int) ([]domain.TicketRecord, error) {
	if s.tickets == nil {
		return nil, apperrors.NewServiceUnavailable("ticket store not configured", nil)
	}
	records, err := s.tickets.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}
