package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/llm"
)

// ResolutionFallback is returned whenever a draft cannot be produced.
const ResolutionFallback = "Resolution could not be generated at this time. Please try again later."

// Drafter writes a suggested resolution note from ticket metadata.
type Drafter struct {
	completer llm.Completer
	model     string
	maxTokens int
	logger    *zap.Logger
}

func NewDrafter(completer llm.Completer, model string, maxTokens int, logger *zap.Logger) *Drafter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drafter{completer: completer, model: model, maxTokens: maxTokens, logger: logger}
}

// Draft never fails. The prompt is built from metadata only; the request
// and classification are accepted for callers but not sent.
func (d *Drafter) Draft(ctx context.Context, _ domain.TicketRequest, _ domain.Classification, meta domain.Metadata) string {
	if d.completer == nil {
		return ResolutionFallback
	}
	prompt, err := renderTemplate(resolutionPromptTmpl, meta)
	if err != nil {
		d.logger.Warn("rendering resolution prompt", zap.Error(err))
		return ResolutionFallback
	}
	reply, err := d.completer.Complete(ctx, llm.Request{
		Model:     d.model,
		System:    "You are a senior IT support engineer.",
		Prompt:    prompt,
		MaxTokens: d.maxTokens,
	})
	if err != nil {
		d.logger.Warn("resolution draft failed", zap.Error(err))
		return ResolutionFallback
	}
	note := strings.TrimSpace(reply)
	if note == "" {
		return ResolutionFallback
	}
	return note
}
