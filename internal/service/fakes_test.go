package service

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/ticket-intake/internal/catalog"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/llm"
)

var errBackendDown = errors.New("backend down")

func testCatalog() *catalog.Catalog {
	return catalog.New(map[string]map[string]string{
		"issuetype":      {"1": "Printer", "2": "Email", "3": "Software/SaaS", "4": "Network", "5": "Hardware"},
		"subissuetype":   {"10": "Printer", "11": "Email", "12": "MS Office", "13": "VPN"},
		"ticketcategory": {"1": "Standard", "2": "Project"},
		"tickettype":     {"1": "Incident", "2": "Service Request"},
		"priority":       {"1": "Low", "2": "Medium", "3": "High", "4": "Critical"},
		"status":         {"1": "New", "5": "Complete", "6": "Closed"},
	})
}

// scriptedCompleter replies with a fixed text or error and records prompts.
type scriptedCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []llm.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req)
	return s.reply, s.err
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type fixedAllocator struct {
	numbers []string
	err     error
}

func (f *fixedAllocator) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	n := f.numbers[0]
	f.numbers = f.numbers[1:]
	return n, nil
}

type fakeExtractor struct {
	meta domain.Metadata
	err  error
}

func (f fakeExtractor) Extract(context.Context, string, string) (domain.Metadata, error) {
	return f.meta, f.err
}

type fakeFinder struct {
	results []domain.SimilarTicket
	err     error
	calls   int
}

func (f *fakeFinder) FindSimilar(context.Context, string, string, int) ([]domain.SimilarTicket, error) {
	f.calls++
	return f.results, f.err
}

type countingClassifier struct {
	next  TicketClassifier
	calls int
}

func (c *countingClassifier) Classify(ctx context.Context, req domain.TicketRequest, meta domain.Metadata, similar []domain.SimilarTicket) domain.Classification {
	c.calls++
	return c.next.Classify(ctx, req, meta, similar)
}

type countingDrafter struct {
	note  string
	calls int
}

func (d *countingDrafter) Draft(context.Context, domain.TicketRequest, domain.Classification, domain.Metadata) string {
	d.calls++
	return d.note
}

type fakeAssigner struct {
	assignment domain.Assignment
	err        error
	calls      int
}

func (f *fakeAssigner) Assign(context.Context, *domain.TicketRecord) (domain.Assignment, error) {
	f.calls++
	return f.assignment, f.err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}
