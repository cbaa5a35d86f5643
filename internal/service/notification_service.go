package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/httputil"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	if m.Logger != nil {
		m.Logger.Info("email",
			zap.String("from", msg.From),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
	}
	return nil
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	mailer     Mailer
	signer     *auth.WebhookSigner
	client     *http.Client
}

// NotificationDependencies bundles collaborators. Nil fields get defaults.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Config     config.NotificationConfig
	Mailer     Mailer
	Signer     *auth.WebhookSigner
	HTTPClient *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		logger:     logger,
		cfg:        deps.Config,
		mailer:     mailer,
		signer:     deps.Signer,
		client:     client,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketCreated", zap.String("ticket_number", event.TicketNumber))

	var errs []error
	if to := strings.TrimSpace(payload.Requester.Email); to != "" {
		errs = append(errs, n.sendEmail(ctx, Message{
			To:      to,
			Subject: fmt.Sprintf("[%s] We received your request: %s", event.TicketNumber, payload.Title),
			Body: fmt.Sprintf("Hello %s,\n\nYour ticket %s has been logged with priority %s.\n\nSuggested steps:\n%s\n",
				displayName(payload.Requester.Name), event.TicketNumber, payload.Priority, payload.ResolutionNote),
		}))
	}
	errs = append(errs, n.sendWebhook(ctx, event))
	return errors.Join(errs...)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketAssigned",
		zap.String("ticket_number", event.TicketNumber),
		zap.String("technician", payload.Assignment.TechnicianName))

	var errs []error
	if to := strings.TrimSpace(payload.Assignment.TechnicianEmail); to != "" {
		errs = append(errs, n.sendEmail(ctx, Message{
			To:      to,
			Subject: fmt.Sprintf("[%s] New ticket assigned: %s", event.TicketNumber, payload.Title),
			Body: fmt.Sprintf("Ticket %s (priority %s) has been assigned to you.\n\n%s\n",
				event.TicketNumber, payload.Priority, payload.Assignment.Reasoning),
		}))
	}
	if to := strings.TrimSpace(payload.Requester.Email); to != "" {
		errs = append(errs, n.sendEmail(ctx, Message{
			To:      to,
			Subject: fmt.Sprintf("[%s] Your ticket has been assigned", event.TicketNumber),
			Body: fmt.Sprintf("Hello %s,\n\n%s is now working on ticket %s.\n",
				displayName(payload.Requester.Name), payload.Assignment.TechnicianName, event.TicketNumber),
		}))
	}
	errs = append(errs, n.sendWebhook(ctx, event))
	return errors.Join(errs...)
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Warn("TicketEscalated",
		zap.String("ticket_number", event.TicketNumber),
		zap.String("reason", payload.Reason))

	var errs []error
	if to := strings.TrimSpace(n.cfg.ManagerEmail); to != "" {
		errs = append(errs, n.sendEmail(ctx, Message{
			To:      to,
			Subject: fmt.Sprintf("[%s] Escalation: %s", event.TicketNumber, payload.Title),
			Body: fmt.Sprintf("Ticket %s needs attention.\nPriority: %s\nReason: %s\nAssignment: %s (%s)\n",
				event.TicketNumber, payload.Priority, payload.Reason,
				payload.Assignment.TechnicianName, payload.Assignment.Status),
		}))
	}
	errs = append(errs, n.sendWebhook(ctx, event))
	return errors.Join(errs...)
}

func (n *NotificationService) sendEmail(ctx context.Context, msg Message) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return nil
	}
	msg.From = n.cfg.EmailFrom
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", msg.To, err)
	}
	return nil
}

// sendWebhook posts the event as JSON. When a signer is configured the
// request carries a bearer token bound to the event.
func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))
	if n.signer != nil {
		token, err := n.signer.Sign(event.ID, string(event.Type), event.TicketNumber)
		if err != nil {
			return fmt.Errorf("signing webhook: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httputil.DoWithRetry(ctx, n.client, req, 0)
	if err != nil {
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	n.logger.Debug("webhook delivered",
		zap.String("ticket_number", event.TicketNumber),
		zap.String("event_type", string(event.Type)))
	return nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
