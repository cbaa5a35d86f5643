package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/llm"
)

// ErrExtraction is returned when metadata cannot be derived from a ticket.
var ErrExtraction = errors.New("metadata extraction failed")

// Extractor pulls structured metadata out of ticket text.
type Extractor struct {
	completer llm.Completer
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewExtractor creates the extractor.
func NewExtractor(completer llm.Completer, model string, maxTokens int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{completer: completer, model: model, maxTokens: maxTokens, logger: logger}
}

// Extract returns the metadata for a ticket. The returned Status is always
// "Open" whatever the backend said.
func (e *Extractor) Extract(ctx context.Context, title, description string) (domain.Metadata, error) {
	prompt, err := renderTemplate(extractionPromptTmpl, struct{ Title, Description string }{title, description})
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: rendering prompt: %v", ErrExtraction, err)
	}
	reply, err := e.completer.Complete(ctx, llm.Request{
		Model:     e.model,
		System:    "You extract structured metadata from IT support tickets and answer in JSON.",
		Prompt:    prompt,
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var raw rawMetadata
	if err := llm.DecodeObject(reply, &raw); err != nil {
		e.logger.Warn("unparseable extraction reply", zap.Error(err), zap.Int("reply_len", len(reply)))
		return domain.Metadata{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	meta := raw.toDomain()
	meta.Status = domain.MetadataStatusOpen
	return meta, nil
}

type rawMetadata struct {
	MainIssue            flexText     `json:"main_issue"`
	AffectedSystem       flexText     `json:"affected_system"`
	UrgencyLevel         flexText     `json:"urgency_level"`
	ErrorMessages        flexText     `json:"error_messages"`
	TechnicalKeywords    flexKeywords `json:"technical_keywords"`
	UserActions          flexText     `json:"user_actions"`
	ResolutionIndicators flexText     `json:"resolution_indicators"`
}

func (r rawMetadata) toDomain() domain.Metadata {
	return domain.Metadata{
		MainIssue:            string(r.MainIssue),
		AffectedSystem:       string(r.AffectedSystem),
		UrgencyLevel:         string(r.UrgencyLevel),
		ErrorMessages:        string(r.ErrorMessages),
		TechnicalKeywords:    []string(r.TechnicalKeywords),
		UserActions:          string(r.UserActions),
		ResolutionIndicators: string(r.ResolutionIndicators),
	}
}

// flexText accepts a string, a number, null or a list of strings, which is
// joined with ", ".
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*f = flexText(strings.Join(items, ", "))
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexText(scalarString(v))
	return nil
}

// flexKeywords accepts a list or a comma separated string.
type flexKeywords []string

func (f *flexKeywords) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var parts []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			parts = append(parts, scalarString(item))
		}
	case string:
		parts = strings.Split(val, ",")
	case nil:
	default:
		parts = []string{scalarString(val)}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*f = out
	return nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, _ := json.Marshal(val)
		return string(raw)
	}
}
