package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/catalog"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/llm"
)

const (
	maxPromptSimilar  = 15
	maxPromptTitleLen = 100
	statusNewLabel    = "New"
	statusNewFallback = "1"
)

// keywordFamily maps words found in the metadata to a default label bundle.
type keywordFamily struct {
	name     string
	keywords []string
	labels   map[domain.Field]string
}

var smartDefaults = []keywordFamily{
	{
		name:     "printer",
		keywords: []string{"printer", "print"},
		labels: map[domain.Field]string{
			domain.FieldIssueType:      "Printer",
			domain.FieldSubIssueType:   "Printer",
			domain.FieldTicketCategory: "Standard",
			domain.FieldTicketType:     "Incident",
			domain.FieldPriority:       "Medium",
		},
	},
	{
		name:     "email",
		keywords: []string{"email", "outlook", "exchange"},
		labels: map[domain.Field]string{
			domain.FieldIssueType:      "Email",
			domain.FieldSubIssueType:   "Email",
			domain.FieldTicketCategory: "Standard",
			domain.FieldTicketType:     "Incident",
			domain.FieldPriority:       "Medium",
		},
	},
}

var genericDefaults = map[domain.Field]string{
	domain.FieldIssueType:      "Software/SaaS",
	domain.FieldSubIssueType:   "MS Office",
	domain.FieldTicketCategory: "Standard",
	domain.FieldTicketType:     "Incident",
	domain.FieldPriority:       "Medium",
}

// Classifier assigns catalog codes to a ticket. It never fails: every field
// degrades through majority vote, keyword defaults and a generic default.
type Classifier struct {
	completer llm.Completer
	catalog   *catalog.Catalog
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClassifier creates the classifier.
func NewClassifier(completer llm.Completer, cat *catalog.Catalog, model string, maxTokens int, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{completer: completer, catalog: cat, model: model, maxTokens: maxTokens, logger: logger}
}

// Classify returns a value for every classified field. STATUS is always the
// catalog's "New".
func (c *Classifier) Classify(ctx context.Context, req domain.TicketRequest, meta domain.Metadata, similar []domain.SimilarTicket) domain.Classification {
	votes := majorityVotes(similar)
	result := c.fromModel(ctx, req, meta, similar, votes)

	family := matchFamily(meta)
	for _, field := range domain.ClassifiedFields {
		if field == domain.FieldStatus {
			continue
		}
		if v, ok := result[field]; ok && !v.IsMissing() {
			continue
		}
		v, source := c.fallback(field, votes, family)
		c.logger.Info("classification fallback",
			zap.String("field", string(field)),
			zap.String("source", source),
			zap.String("value", v.Value))
		result.Set(field, v)
	}
	result.Set(domain.FieldStatus, c.statusNew())
	return result
}

func (c *Classifier) fromModel(ctx context.Context, req domain.TicketRequest, meta domain.Metadata, similar []domain.SimilarTicket, votes map[domain.Field]vote) domain.Classification {
	result := domain.Classification{}
	if c.completer == nil {
		return result
	}
	prompt, err := c.prompt(req, meta, similar, votes)
	if err != nil {
		c.logger.Warn("rendering classification prompt", zap.Error(err))
		return result
	}
	reply, err := c.completer.Complete(ctx, llm.Request{
		Model:     c.model,
		System:    "You classify IT support tickets using fixed reference codes and answer in JSON.",
		Prompt:    prompt,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		c.logger.Info("classifier unavailable, using fallbacks", zap.Error(err))
		return result
	}
	var payload map[string]json.RawMessage
	if err := llm.DecodeObject(reply, &payload); err != nil {
		c.logger.Info("classifier reply unparseable, using fallbacks", zap.Error(err))
		return result
	}
	for key, raw := range payload {
		field := domain.Field(strings.ToUpper(strings.TrimSpace(key)))
		if field == domain.FieldStatus || !isClassified(field) {
			continue
		}
		if v, ok := c.normalize(field, raw); ok {
			result.Set(field, v)
		}
	}
	return result
}

// normalize accepts {Value,Label} in any key case, a bare code, a bare label
// or a number. Only codes the catalog knows are kept.
func (c *Classifier) normalize(field domain.Field, raw json.RawMessage) (domain.FieldValue, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.FieldValue{}, false
	}
	var code, label string
	switch v := decoded.(type) {
	case map[string]any:
		for key, item := range v {
			switch strings.ToLower(key) {
			case "value", "code":
				code = scalarString(item)
			case "label":
				label = scalarString(item)
			}
		}
	case string, float64:
		code = scalarString(v)
		label = code
	default:
		return domain.FieldValue{}, false
	}

	key := field.CatalogKey()
	if code != "" && c.catalog.Has(key, code) {
		return c.labelled(field, code), true
	}
	if label != "" {
		if found := c.catalog.FindValueByLabel(key, label); found != domain.NotAvailable {
			return c.labelled(field, found), true
		}
	}
	return domain.FieldValue{}, false
}

func (c *Classifier) fallback(field domain.Field, votes map[domain.Field]vote, family *keywordFamily) (domain.FieldValue, string) {
	if v, ok := votes[field]; ok {
		return c.labelled(field, v.code), "majority"
	}
	if family != nil {
		if v, ok := c.byLabel(field, family.labels[field]); ok {
			return v, family.name
		}
	}
	if v, ok := c.byLabel(field, genericDefaults[field]); ok {
		return v, "generic"
	}
	return domain.FieldValue{Value: domain.NotAvailable, Label: domain.UnknownLabel}, "none"
}

func (c *Classifier) byLabel(field domain.Field, label string) (domain.FieldValue, bool) {
	if label == "" {
		return domain.FieldValue{}, false
	}
	code := c.catalog.FindValueByLabel(field.CatalogKey(), label)
	if code == domain.NotAvailable {
		return domain.FieldValue{}, false
	}
	return c.labelled(field, code), true
}

func (c *Classifier) labelled(field domain.Field, code string) domain.FieldValue {
	label, ok := c.catalog.Label(field.CatalogKey(), code)
	if !ok {
		label = domain.UnknownLabel
	}
	return domain.FieldValue{Value: code, Label: label}
}

func (c *Classifier) statusNew() domain.FieldValue {
	key := domain.FieldStatus.CatalogKey()
	if !c.catalog.HasField(key) {
		return domain.FieldValue{Value: statusNewFallback, Label: statusNewLabel}
	}
	code := c.catalog.FindValueByLabel(key, statusNewLabel)
	if code == domain.NotAvailable {
		return domain.FieldValue{Value: statusNewFallback, Label: statusNewLabel}
	}
	return domain.FieldValue{Value: code, Label: statusNewLabel}
}

type promptOption struct {
	Field   domain.Field
	Entries []catalog.Option
}

type classificationPrompt struct {
	Title           string
	Description     string
	InitialPriority string
	Metadata        domain.Metadata
	Similar         []domain.SimilarTicket
	Majority        []string
	Options         []promptOption
}

func (c *Classifier) prompt(req domain.TicketRequest, meta domain.Metadata, similar []domain.SimilarTicket, votes map[domain.Field]vote) (string, error) {
	data := classificationPrompt{
		Title:           req.Title,
		Description:     req.Description,
		InitialPriority: req.InitialPriority,
		Metadata:        meta,
	}
	for i, t := range similar {
		if i == maxPromptSimilar {
			break
		}
		t.Title = truncateRunes(t.Title, maxPromptTitleLen)
		data.Similar = append(data.Similar, t)
	}
	for _, field := range domain.ClassifiedFields {
		if field == domain.FieldStatus {
			continue
		}
		if v, ok := votes[field]; ok {
			label := c.labelled(field, v.code).Label
			data.Majority = append(data.Majority,
				fmt.Sprintf("%s: %s (Label: %s, appeared %d times)", field, v.code, label, v.count))
		}
		data.Options = append(data.Options, promptOption{Field: field, Entries: c.catalog.Options(field.CatalogKey())})
	}
	return renderTemplate(classificationPromptTmpl, data)
}

type vote struct {
	code  string
	count int
}

// majorityVotes returns the most frequent code per field among the similar
// tickets. Missing codes are ignored; ties go to the code seen first.
func majorityVotes(similar []domain.SimilarTicket) map[domain.Field]vote {
	out := make(map[domain.Field]vote)
	for _, field := range domain.ClassifiedFields {
		if field == domain.FieldStatus {
			continue
		}
		counts := make(map[string]int)
		var order []string
		for _, t := range similar {
			code := strings.TrimSpace(t.Code(field))
			if (domain.FieldValue{Value: code}).IsMissing() {
				continue
			}
			if counts[code] == 0 {
				order = append(order, code)
			}
			counts[code]++
		}
		var best vote
		for _, code := range order {
			if counts[code] > best.count {
				best = vote{code: code, count: counts[code]}
			}
		}
		if best.count > 0 {
			out[field] = best
		}
	}
	return out
}

func matchFamily(meta domain.Metadata) *keywordFamily {
	text := strings.ToLower(meta.MainIssue + " " + meta.AffectedSystem)
	for i := range smartDefaults {
		for _, kw := range smartDefaults[i].keywords {
			if strings.Contains(text, kw) {
				return &smartDefaults[i]
			}
		}
	}
	return nil
}

func isClassified(field domain.Field) bool {
	for _, f := range domain.ClassifiedFields {
		if f == field {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
