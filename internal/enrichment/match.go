package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"callcenter/pkg/logger"
)

const (
	DefaultMatchModel    = "gpt-4.1-mini"
	defaultMatchAttempts = 5
	defaultMatchBase     = 2 * time.Second
)

// Matcher finds which catalog questions one transcript asks. Rate limits are
// retried with exponential backoff; other errors are returned at once.
type Matcher struct {
	completer Completer
	model     string
	attempts  int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewMatcher(c Completer, model string) *Matcher {
	if model == "" {
		model = DefaultMatchModel
	}
	return &Matcher{
		completer: c,
		model:     model,
		attempts:  defaultMatchAttempts,
		baseDelay: defaultMatchBase,
		sleep:     sleepCtx,
	}
}

func (m *Matcher) MatchQuestions(ctx context.Context, transcript string, catalog []string) ([]string, error) {
	if len(catalog) == 0 {
		return []string{}, nil
	}
	req := Request{
		Model:       m.model,
		System:      questionsSystem,
		Prompt:      matchPrompt(transcript, catalog),
		JSON:        true,
		Temperature: 0.2,
	}

	var content string
	var err error
	for attempt := 0; attempt < m.attempts; attempt++ {
		content, err = m.completer.Complete(ctx, req)
		if err == nil || !IsRateLimit(err) || attempt == m.attempts-1 {
			break
		}
		delay := m.baseDelay << attempt
		logger.From(ctx).Warn("question matching rate limited",
			slog.Int("attempt", attempt+1), slog.Duration("backoff", delay))
		if serr := m.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	if err != nil {
		return nil, err
	}
	return parseMatched(content, catalog)
}

// parseMatched accepts a bare array, {"questions": [...]} or
// {"matched_questions": [...]} and keeps only catalog entries.
func parseMatched(content string, catalog []string) ([]string, error) {
	content = StripCodeFences(content)
	var list []string
	if err := json.Unmarshal([]byte(content), &list); err != nil {
		var obj struct {
			Questions        []string `json:"questions"`
			MatchedQuestions []string `json:"matched_questions"`
		}
		if err := json.Unmarshal([]byte(content), &obj); err != nil {
			return nil, fmt.Errorf("enrichment: parse matched questions: %w", err)
		}
		list = obj.Questions
		if list == nil {
			list = obj.MatchedQuestions
		}
	}

	known := make(map[string]struct{}, len(catalog))
	for _, q := range catalog {
		known[q] = struct{}{}
	}
	out := make([]string, 0, len(list))
	for _, q := range list {
		if _, ok := known[q]; !ok {
			continue
		}
		delete(known, q)
		out = append(out, q)
	}
	return out, nil
}
