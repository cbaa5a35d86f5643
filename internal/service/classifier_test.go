package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/catalog"
	"github.com/spec-kit/ticket-intake/internal/domain"
)

func fv(code, label string) domain.FieldValue {
	return domain.FieldValue{Value: code, Label: label}
}

func TestClassifyNormalizesModelReply(t *testing.T) {
	completer := &scriptedCompleter{reply: "```json\n" + `{
		"issuetype": {"value": 4, "label": "whatever"},
		"SUBISSUETYPE": "VPN",
		"TicketCategory": "2",
		"TICKETTYPE": {"Value": "N/A", "Label": "service request"},
		"PRIORITY": {"Value": "99", "Label": "nope"},
		"STATUS": {"Value": "6", "Label": "Closed"}
	}` + "\n```"}
	c := NewClassifier(completer, testCatalog(), "m", 256, zap.NewNop())

	got := c.Classify(context.Background(), domain.TicketRequest{Title: "VPN drops"}, domain.Metadata{MainIssue: "VPN tunnel drops"}, nil)

	assert.Equal(t, fv("4", "Network"), got[domain.FieldIssueType])
	assert.Equal(t, fv("13", "VPN"), got[domain.FieldSubIssueType])
	assert.Equal(t, fv("2", "Project"), got[domain.FieldTicketCategory])
	assert.Equal(t, fv("2", "Service Request"), got[domain.FieldTicketType])
	// invalid code falls back to the generic default
	assert.Equal(t, fv("2", "Medium"), got[domain.FieldPriority])
	assert.Equal(t, fv("1", "New"), got[domain.FieldStatus])
	assert.True(t, got.Complete())
}

func TestClassifyStatusAlwaysNew(t *testing.T) {
	completer := &scriptedCompleter{reply: `{"STATUS": {"Value": "6", "Label": "Closed"}}`}
	got := NewClassifier(completer, testCatalog(), "", 0, nil).
		Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{}, nil)
	assert.Equal(t, fv("1", "New"), got[domain.FieldStatus])
}

func TestClassifyStatusWithoutStatusTable(t *testing.T) {
	cat := catalog.New(map[string]map[string]string{"priority": {"1": "Low"}})
	got := NewClassifier(nil, cat, "", 0, nil).
		Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{}, nil)
	assert.Equal(t, fv("1", "New"), got[domain.FieldStatus])
	assert.Equal(t, fv(domain.NotAvailable, domain.UnknownLabel), got[domain.FieldIssueType])
	assert.True(t, got.Complete())
}

func TestClassifyPrinterScenario(t *testing.T) {
	c := NewClassifier(&scriptedCompleter{err: errBackendDown}, testCatalog(), "", 0, nil)
	req := domain.TicketRequest{Title: "Printer error E02"}
	meta := domain.Metadata{MainIssue: "Printer error E02", Status: domain.MetadataStatusOpen}

	got := c.Classify(context.Background(), req, meta, nil)

	assert.Equal(t, fv("1", "Printer"), got[domain.FieldIssueType])
	assert.Equal(t, fv("10", "Printer"), got[domain.FieldSubIssueType])
	assert.Equal(t, fv("1", "Standard"), got[domain.FieldTicketCategory])
	assert.Equal(t, fv("1", "Incident"), got[domain.FieldTicketType])
	assert.Equal(t, fv("2", "Medium"), got[domain.FieldPriority])
	assert.Equal(t, fv("1", "New"), got[domain.FieldStatus])
}

func TestClassifyEmailFamilyAndGenericDefault(t *testing.T) {
	c := NewClassifier(nil, testCatalog(), "", 0, nil)

	got := c.Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{MainIssue: "Outlook keeps crashing"}, nil)
	assert.Equal(t, fv("2", "Email"), got[domain.FieldIssueType])
	assert.Equal(t, fv("11", "Email"), got[domain.FieldSubIssueType])

	got = c.Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{MainIssue: "Laptop fan noisy"}, nil)
	assert.Equal(t, fv("3", "Software/SaaS"), got[domain.FieldIssueType])
	assert.Equal(t, fv("12", "MS Office"), got[domain.FieldSubIssueType])
}

func TestClassifyMissingBundleLabelFallsThrough(t *testing.T) {
	cat := catalog.New(map[string]map[string]string{
		"issuetype":    {"3": "Software/SaaS"},
		"subissuetype": {"12": "MS Office"},
	})
	got := NewClassifier(nil, cat, "", 0, nil).
		Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{AffectedSystem: "Printer"}, nil)
	assert.Equal(t, fv("3", "Software/SaaS"), got[domain.FieldIssueType])
	assert.Equal(t, fv("12", "MS Office"), got[domain.FieldSubIssueType])
	assert.Equal(t, fv(domain.NotAvailable, domain.UnknownLabel), got[domain.FieldPriority])
}

func TestClassifyMajorityVote(t *testing.T) {
	similar := []domain.SimilarTicket{
		{TicketNumber: "a", IssueType: "4", SubIssueType: "N/A", Priority: "3", TicketType: "2"},
		{TicketNumber: "b", IssueType: "5", SubIssueType: "", Priority: "1", TicketType: "1"},
		{TicketNumber: "c", IssueType: "4", SubIssueType: "13", Priority: "1", TicketType: "1"},
		{TicketNumber: "d", IssueType: "5", Priority: "3", TicketType: "77"},
		{TicketNumber: "e", IssueType: "4", TicketType: "77"},
	}
	c := NewClassifier(&scriptedCompleter{err: errBackendDown}, testCatalog(), "", 0, nil)

	got := c.Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{MainIssue: "printer"}, similar)

	assert.Equal(t, fv("4", "Network"), got[domain.FieldIssueType])
	assert.Equal(t, fv("13", "VPN"), got[domain.FieldSubIssueType])
	// tie between 3 and 1 goes to the first seen
	assert.Equal(t, fv("3", "High"), got[domain.FieldPriority])
	// 1 and 77 both appear twice; 1 was seen first
	assert.Equal(t, fv("1", "Incident"), got[domain.FieldTicketType])
	// no votes for category, printer family applies
	assert.Equal(t, fv("1", "Standard"), got[domain.FieldTicketCategory])
}

func TestClassifyMajorityCodeOutsideCatalog(t *testing.T) {
	similar := []domain.SimilarTicket{{IssueType: "42"}}
	got := NewClassifier(nil, testCatalog(), "", 0, nil).
		Classify(context.Background(), domain.TicketRequest{}, domain.Metadata{}, similar)
	assert.Equal(t, fv("42", domain.UnknownLabel), got[domain.FieldIssueType])
}

func TestClassifyPromptContents(t *testing.T) {
	completer := &scriptedCompleter{err: errBackendDown}
	var similar []domain.SimilarTicket
	for i := 0; i < 20; i++ {
		similar = append(similar, domain.SimilarTicket{
			TicketNumber: "n",
			Title:        strings.Repeat("x", 150),
			IssueType:    "4",
		})
	}
	NewClassifier(completer, testCatalog(), "", 0, nil).Classify(context.Background(),
		domain.TicketRequest{Title: "VPN", InitialPriority: "High"}, domain.Metadata{}, similar)

	require.Equal(t, 1, completer.calls())
	prompt := completer.prompts[0].Prompt
	assert.Equal(t, 15, strings.Count(prompt, "ISSUETYPE=4"))
	assert.NotContains(t, prompt, strings.Repeat("x", 101))
	assert.Contains(t, prompt, "ISSUETYPE: 4 (Label: Network, appeared 20 times)")
	assert.Contains(t, prompt, "Requested priority: High")
	assert.Contains(t, prompt, "13 = VPN")
}
