package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"callcenter/pkg/logger"
)

var ErrClassificationInProgress = errors.New("enrichment: question classification already in progress")

const DefaultMinSpacing = 2 * time.Second

// Classifier counts catalog questions across many transcripts with a single
// prompt. At most one classification runs at a time; concurrent callers get
// ErrClassificationInProgress instead of queueing.
type Classifier struct {
	completer  Completer
	models     []string
	minSpacing time.Duration

	inFlight atomic.Bool
	lastEnd  time.Time // guarded by inFlight

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClassifier(c Completer, models []string, minSpacing time.Duration) *Classifier {
	if minSpacing <= 0 {
		minSpacing = DefaultMinSpacing
	}
	return &Classifier{
		completer:  c,
		models:     models,
		minSpacing: minSpacing,
		clock:      time.Now,
		sleep:      sleepCtx,
	}
}

type batchResult struct {
	Results []struct {
		TranscriptID string   `json:"transcript_id"`
		Questions    []string `json:"questions"`
	} `json:"results"`
}

// BatchClassifyQuestions returns one stat per catalog question, sorted by
// count descending. Percentages are relative to the number of non-empty
// transcripts. Provider failures are returned, not degraded.
func (c *Classifier) BatchClassifyQuestions(ctx context.Context, transcripts []Transcript, catalog []string) ([]QuestionStat, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrClassificationInProgress
	}
	defer c.inFlight.Store(false)

	valid := make([]Transcript, 0, len(transcripts))
	for _, t := range transcripts {
		if strings.TrimSpace(t.Text) != "" {
			valid = append(valid, t)
		}
	}
	counts := make(map[string]int, len(catalog))
	for _, q := range catalog {
		counts[q] = 0
	}
	if len(valid) == 0 || len(catalog) == 0 {
		return buildStats(catalog, counts, len(valid)), nil
	}

	if !c.lastEnd.IsZero() {
		if wait := c.minSpacing - c.clock().Sub(c.lastEnd); wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	content, err := c.dispatch(ctx, batchPrompt(valid, catalog))
	c.lastEnd = c.clock()
	if err != nil {
		return nil, err
	}

	var parsed batchResult
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("enrichment: parse classification: %w", err)
	}
	for _, r := range parsed.Results {
		seen := make(map[string]struct{}, len(r.Questions))
		for _, q := range r.Questions {
			if _, ok := counts[q]; !ok {
				continue
			}
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			counts[q]++
		}
	}
	return buildStats(catalog, counts, len(valid)), nil
}

// dispatch tries each model once, in order. A rate limit is preferred over
// other errors when everything fails, so callers can tell users when to retry.
func (c *Classifier) dispatch(ctx context.Context, prompt string) (string, error) {
	if len(c.models) == 0 {
		return "", errors.New("enrichment: no classification models configured")
	}
	log := logger.From(ctx)
	var lastErr, rateErr error
	for _, m := range c.models {
		content, err := c.completer.Complete(ctx, Request{
			Model:       m,
			System:      questionsSystem,
			Prompt:      prompt,
			Temperature: 0.2,
		})
		if err == nil {
			log.Debug("question classification done", slog.String("model", m))
			return content, nil
		}
		log.Warn("classification model failed", slog.String("model", m), slog.Any("err", err))
		lastErr = err
		if IsRateLimit(err) {
			rateErr = err
		}
	}
	if rateErr != nil {
		return "", rateErr
	}
	return "", fmt.Errorf("enrichment: all classification models failed: %w", lastErr)
}

func buildStats(catalog []string, counts map[string]int, total int) []QuestionStat {
	out := make([]QuestionStat, 0, len(catalog))
	seen := make(map[string]struct{}, len(catalog))
	for _, q := range catalog {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		st := QuestionStat{Question: q, Count: counts[q]}
		if total > 0 {
			st.Percentage = float64(st.Count) / float64(total) * 100
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
