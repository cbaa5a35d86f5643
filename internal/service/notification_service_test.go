package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
)

type webhookCapture struct {
	mu       sync.Mutex
	bodies   []map[string]any
	tokens   []string
	statuses []int
}

func (w *webhookCapture) handler(status int) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		w.mu.Lock()
		w.bodies = append(w.bodies, body)
		w.tokens = append(w.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		w.mu.Unlock()
		rw.WriteHeader(status)
	}
}

func newNotifier(t *testing.T, status int, cfg config.NotificationConfig) (*NotificationService, events.Dispatcher, *recordingMailer, *webhookCapture, *auth.WebhookSigner) {
	t.Helper()
	capture := &webhookCapture{}
	srv := httptest.NewServer(capture.handler(status))
	t.Cleanup(srv.Close)

	cfg.WebhookURL = srv.URL
	signer := auth.NewWebhookSigner("hook-secret", "ticket-intake", time.Minute)
	mailer := &recordingMailer{}
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Config:     cfg,
		Mailer:     mailer,
		Signer:     signer,
		HTTPClient: srv.Client(),
	})
	n.RegisterHandlers()
	return n, dispatcher, mailer, capture, signer
}

func TestTicketCreatedNotifiesCustomerAndWebhook(t *testing.T) {
	_, dispatcher, mailer, capture, signer := newNotifier(t, http.StatusNoContent,
		config.NotificationConfig{EmailFrom: "helpdesk@company.com"})

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:           "evt-1",
		Type:         events.EventTicketCreated,
		TicketNumber: "T20240305.0001",
		Payload: events.TicketCreatedPayload{
			Title:     "Printer error E02",
			Requester: domain.Requester{Name: "Sam", Email: "sam@company.com"},
			Priority:  "Medium",
		},
	})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "sam@company.com", mailer.sent[0].To)
	assert.Equal(t, "helpdesk@company.com", mailer.sent[0].From)
	assert.Contains(t, mailer.sent[0].Subject, "T20240305.0001")

	require.Len(t, capture.bodies, 1)
	assert.Equal(t, "ticket_created", capture.bodies[0]["type"])
	claims, err := signer.Verify(capture.tokens[0])
	require.NoError(t, err)
	assert.Equal(t, "T20240305.0001", claims.TicketNumber)
	assert.Equal(t, "evt-1", claims.ID)
}

func TestTicketAssignedNotifiesTechnicianAndCustomer(t *testing.T) {
	_, dispatcher, mailer, _, _ := newNotifier(t, http.StatusOK, config.NotificationConfig{EmailFrom: "helpdesk@company.com"})

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:         events.EventTicketAssigned,
		TicketNumber: "T20240305.0001",
		Payload: events.TicketAssignedPayload{
			Requester:  domain.Requester{Email: "sam@company.com"},
			Assignment: domain.Assignment{TechnicianName: "Pat", TechnicianEmail: "pat@company.com"},
		},
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "pat@company.com", mailer.sent[0].To)
	assert.Equal(t, "sam@company.com", mailer.sent[1].To)
}

func TestTicketEscalatedNotifiesManager(t *testing.T) {
	_, dispatcher, mailer, _, _ := newNotifier(t, http.StatusOK, config.NotificationConfig{
		EmailFrom:    "helpdesk@company.com",
		ManagerEmail: "itmanager@company.com",
	})

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:         events.EventTicketEscalated,
		TicketNumber: "T20240305.0001",
		Payload:      events.TicketEscalatedPayload{Priority: "Critical", Reason: "Critical priority ticket"},
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "itmanager@company.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "Critical priority ticket")
}

func TestWebhookFailureIsReported(t *testing.T) {
	_, dispatcher, _, capture, _ := newNotifier(t, http.StatusInternalServerError, config.NotificationConfig{})

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{},
	})
	assert.ErrorContains(t, err, "webhook returned 500")
	assert.Len(t, capture.bodies, 1)
}

func TestEmailSkippedWithoutSender(t *testing.T) {
	_, dispatcher, mailer, _, _ := newNotifier(t, http.StatusOK, config.NotificationConfig{})
	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{Requester: domain.Requester{Email: "sam@company.com"}},
	})
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestUnexpectedPayload(t *testing.T) {
	_, dispatcher, _, _, _ := newNotifier(t, http.StatusOK, config.NotificationConfig{})
	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketAssigned, Payload: "nope"})
	assert.ErrorContains(t, err, "unexpected payload")
}
