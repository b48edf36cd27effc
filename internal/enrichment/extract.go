package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"callcenter/pkg/logger"
)

// Strategy is one way of extracting call data, typically one model on one provider.
type Strategy interface {
	Name() string
	TryExtract(ctx context.Context, transcript string) (ExtractedCallData, error)
}

// ModelStrategy extracts with a single model through a Completer.
type ModelStrategy struct {
	Completer Completer
	Model     string
}

func (m ModelStrategy) Name() string { return m.Model }

func (m ModelStrategy) TryExtract(ctx context.Context, transcript string) (ExtractedCallData, error) {
	content, err := m.Completer.Complete(ctx, Request{
		Model:       m.Model,
		System:      extractionSystem,
		Prompt:      extractionPrompt(transcript),
		JSON:        true,
		Temperature: 0.3,
	})
	if err != nil {
		return ExtractedCallData{}, err
	}
	return ParseExtraction(content)
}

// ModelStrategies builds one strategy per model, in preference order.
func ModelStrategies(c Completer, models ...string) []Strategy {
	out := make([]Strategy, 0, len(models))
	for _, m := range models {
		out = append(out, ModelStrategy{Completer: c, Model: m})
	}
	return out
}

// Engine runs strategies in order and takes the first success. There is no
// retry of the same strategy.
type Engine struct {
	strategies []Strategy
}

func NewEngine(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// Extract never fails: when every strategy fails it returns Degraded(transcript).
func (e *Engine) Extract(ctx context.Context, transcript string) ExtractedCallData {
	log := logger.From(ctx)
	for _, s := range e.strategies {
		data, err := s.TryExtract(ctx, transcript)
		if err == nil {
			return data
		}
		log.Warn("extraction strategy failed", slog.String("strategy", s.Name()), slog.Any("err", err))
	}
	log.Error("all extraction strategies failed, using degraded record", slog.Int("strategies", len(e.strategies)))
	return Degraded(transcript)
}

const degradedSummaryRunes = 200

// Degraded is the minimal record used when no provider produced a result.
// Its summary is a transcript excerpt, so metadata.degraded marks it.
func Degraded(transcript string) ExtractedCallData {
	summary := strings.TrimSpace(transcript)
	if utf8.RuneCountInString(summary) > degradedSummaryRunes {
		summary = string([]rune(summary)[:degradedSummaryRunes])
	}
	return ExtractedCallData{
		Intent:          IntentGeneral,
		Sentiment:       SentimentNeutral,
		Summary:         summary + "...",
		KeyPoints:       []string{},
		ActionItems:     []string{},
		ScheduledEvents: []ScheduledEvent{},
		ImportantDates:  []string{},
		Deadlines:       []string{},
		Metadata:        map[string]any{"degraded": true},
	}
}

// ParseExtraction decodes a model reply, tolerating code fences, and fills
// defaults for anything the model left out.
func ParseExtraction(content string) (ExtractedCallData, error) {
	content = StripCodeFences(content)
	if content == "" {
		return ExtractedCallData{}, ErrEmptyResponse
	}
	var d ExtractedCallData
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return ExtractedCallData{}, fmt.Errorf("enrichment: parse extraction: %w", err)
	}

	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.Email = strings.TrimSpace(d.Email)
	d.Company = strings.TrimSpace(d.Company)
	d.Intent = strings.TrimSpace(d.Intent)
	if d.Intent == "" {
		d.Intent = IntentGeneral
	}
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(string(d.Sentiment)))); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		d.Sentiment = s
	default:
		d.Sentiment = SentimentNeutral
	}
	if d.KeyPoints == nil {
		d.KeyPoints = []string{}
	}
	if d.ActionItems == nil {
		d.ActionItems = []string{}
	}
	if d.ScheduledEvents == nil {
		d.ScheduledEvents = []ScheduledEvent{}
	}
	if d.ImportantDates == nil {
		d.ImportantDates = []string{}
	}
	if d.Deadlines == nil {
		d.Deadlines = []string{}
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	return d, nil
}
