package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

type intakeFixture struct {
	service    *IntakeService
	finder     *fakeFinder
	classifier *countingClassifier
	drafter    *countingDrafter
	assigner   *fakeAssigner
	tickets    *repository.MemoryTicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
}

func newIntakeFixture(extractor MetadataExtractor) *intakeFixture {
	f := &intakeFixture{
		finder:     &fakeFinder{},
		classifier: &countingClassifier{next: NewClassifier(&scriptedCompleter{err: errBackendDown}, testCatalog(), "", 0, nil)},
		drafter:    &countingDrafter{note: "1. Restart the printer."},
		assigner: &fakeAssigner{assignment: domain.Assignment{
			TechnicianName: "Pat", TechnicianEmail: "pat@company.com", Status: domain.AssignmentStatusAssigned,
		}},
		tickets:    repository.NewMemoryTicketRepository(),
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
	}
	f.service = NewIntakeService(IntakeDependencies{
		Allocator:  &fixedAllocator{numbers: []string{"T20240305.0001", "T20240305.0002"}},
		Extractor:  extractor,
		Similarity: f.finder,
		Classifier: f.classifier,
		Drafter:    f.drafter,
		Assigner:   f.assigner,
		TicketRepo: f.tickets,
		Dispatcher: f.dispatcher,
		Logger:     zap.NewNop(),
		Metrics:    f.metrics,
		TopN:       10,
		Assignment: config.AssignmentConfig{FallbackName: "IT Manager", FallbackEmail: "itmanager@company.com"},
		Now:        func() time.Time { return fixedNow },
	})
	return f
}

func printerExtractor() fakeExtractor {
	return fakeExtractor{meta: domain.Metadata{MainIssue: "Printer error E02", AffectedSystem: "Printer", Status: "Closed"}}
}

func TestProcessNewTicketPrinterScenario(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	var seen []events.EventType
	for _, typ := range []events.EventType{events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketEscalated} {
		f.dispatcher.Subscribe(typ, func(_ context.Context, e events.Event) error {
			seen = append(seen, e.Type)
			return nil
		})
	}

	record, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "Printer error E02"})
	require.NoError(t, err)

	assert.Equal(t, "T20240305.0001", record.TicketNumber)
	assert.Equal(t, domain.MetadataStatusOpen, record.Metadata.Status)
	assert.Equal(t, "Printer", record.Classification[domain.FieldIssueType].Label)
	assert.Equal(t, "Standard", record.Classification[domain.FieldTicketCategory].Label)
	assert.Equal(t, "Incident", record.Classification[domain.FieldTicketType].Label)
	assert.Equal(t, "Medium", record.Classification[domain.FieldPriority].Label)
	assert.Equal(t, "New", record.Classification[domain.FieldStatus].Label)
	assert.True(t, record.Classification.Complete())
	assert.Empty(t, record.SimilarTickets)
	assert.Equal(t, "1. Restart the printer.", record.ResolutionNote)
	assert.Equal(t, "Pat", record.Assignment.TechnicianName)
	assert.True(t, record.Notified)
	assert.Equal(t, fixedNow, record.CreatedAt)
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketAssigned}, seen)

	stored, err := f.service.GetTicket(context.Background(), "T20240305.0001")
	require.NoError(t, err)
	assert.Equal(t, record.ResolutionNote, stored.ResolutionNote)

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Stages["DONE|ok"])
	assert.Equal(t, int64(1), snap.Stages["CLASSIFIED|ok"])
}

func TestProcessNewTicketExtractionAborts(t *testing.T) {
	f := newIntakeFixture(fakeExtractor{err: errors.New("model offline")})

	record, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "VPN", Description: "drops"})
	require.Error(t, err)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrExtraction)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "EXTRACTION_FAILED", domainErr.Code)

	assert.Zero(t, f.finder.calls)
	assert.Zero(t, f.classifier.calls)
	assert.Zero(t, f.drafter.calls)
	assert.Zero(t, f.assigner.calls)
	list, _ := f.tickets.ListRecent(context.Background(), 10, 0)
	assert.Empty(t, list)
}

func TestProcessNewTicketAssignmentFailureUsesPlaceholder(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	f.assigner.err = errors.New("technician directory down")
	var escalated []events.TicketEscalatedPayload
	f.dispatcher.Subscribe(events.EventTicketEscalated, func(_ context.Context, e events.Event) error {
		escalated = append(escalated, e.Payload.(events.TicketEscalatedPayload))
		return nil
	})

	record, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "Printer error E02"})
	require.NoError(t, err)
	assert.Equal(t, domain.Assignment{
		TechnicianName:  "IT Manager",
		TechnicianEmail: "itmanager@company.com",
		Status:          domain.AssignmentStatusFailed,
		AssignedAt:      fixedNow,
	}, record.Assignment)
	require.Len(t, escalated, 1)
	assert.Equal(t, "automatic assignment failed", escalated[0].Reason)
}

func TestProcessNewTicketNotificationFailureIsTolerated(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	f.dispatcher.Subscribe(events.EventTicketCreated, func(context.Context, events.Event) error {
		return errors.New("smtp down")
	})

	record, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "Printer error E02"})
	require.NoError(t, err)
	assert.False(t, record.Notified)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Stages["NOTIFIED|degraded"])
}

func TestProcessNewTicketRecordsSimilarNumbers(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	f.finder.results = []domain.SimilarTicket{
		{TicketNumber: "T20230101.0004", IssueType: "4", Priority: "3"},
		{TicketNumber: "T20230101.0002", IssueType: "4", Priority: "3"},
	}

	record, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "Printer error E02"})
	require.NoError(t, err)
	assert.Equal(t, []string{"T20230101.0004", "T20230101.0002"}, record.SimilarTickets)
	assert.Equal(t, "Network", record.Classification[domain.FieldIssueType].Label)
	assert.Equal(t, "High", record.Classification[domain.FieldPriority].Label)
}

func TestProcessNewTicketHighPriorityEscalates(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	f.finder.results = []domain.SimilarTicket{{TicketNumber: "T20230101.0001", Priority: "4"}}
	var reasons []string
	f.dispatcher.Subscribe(events.EventTicketEscalated, func(_ context.Context, e events.Event) error {
		reasons = append(reasons, e.Payload.(events.TicketEscalatedPayload).Reason)
		return nil
	})

	_, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "Printer error E02"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Critical priority ticket"}, reasons)
}

func TestProcessNewTicketValidation(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	_, err := f.service.ProcessNewTicket(context.Background(), domain.TicketRequest{Title: "  "})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 400, domainErr.HTTPStatus)
}

func TestProcessNewTicketCancelled(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.service.ProcessNewTicket(ctx, domain.TicketRequest{Title: "Printer error E02"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetTicketErrors(t *testing.T) {
	f := newIntakeFixture(printerExtractor())
	var domainErr *apperrors.DomainError

	_, err := f.service.GetTicket(context.Background(), "bogus")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 400, domainErr.HTTPStatus)

	_, err = f.service.GetTicket(context.Background(), "T20240305.0042")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.HTTPStatus)
}
