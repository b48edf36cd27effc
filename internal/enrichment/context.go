package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"callcenter/pkg/logger"
)

const DefaultContextModel = "gpt-3.5-turbo"

// ContextGenerator writes the short greeting context for a repeat caller.
type ContextGenerator struct {
	completer Completer
	model     string
}

func NewContextGenerator(c Completer, model string) *ContextGenerator {
	if model == "" {
		model = DefaultContextModel
	}
	return &ContextGenerator{completer: c, model: model}
}

// CustomerContext falls back to a fixed sentence when the provider fails.
func (g *ContextGenerator) CustomerContext(ctx context.Context, h CustomerHistory) string {
	content, err := g.completer.Complete(ctx, Request{
		Model:       g.model,
		System:      contextSystem,
		Prompt:      contextPrompt(h),
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		logger.From(ctx).Warn("customer context generation failed", slog.Any("err", err))
		who := h.Name
		if strings.TrimSpace(who) == "" {
			who = "a repeat customer"
		}
		return fmt.Sprintf("This is %s. They've called %d time(s) before.", who, len(h.PreviousCalls))
	}
	if s := strings.TrimSpace(content); s != "" {
		return s
	}
	return "This customer has called before."
}
