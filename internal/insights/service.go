// Package insights answers which catalog questions callers ask most often,
// across the recent transcripts of the target agents.
package insights

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter/internal/enrichment"
	"callcenter/internal/voiceagent"
	"callcenter/pkg/logger"
)

const (
	DefaultMaxCalls = 100
	pageSize        = 100
)

var (
	ErrNoTranscript = errors.New("insights: call has no transcript")
	errEnough       = errors.New("insights: enough calls collected")
)

// CallSource is the platform read side used to gather transcripts.
type CallSource interface {
	ListCalls(ctx context.Context, f voiceagent.ListCallsFilter) ([]voiceagent.CallRecord, error)
	GetCall(ctx context.Context, callID string) (voiceagent.CallRecord, error)
}

// QuestionClassifier is implemented by *enrichment.Classifier.
type QuestionClassifier interface {
	BatchClassifyQuestions(ctx context.Context, transcripts []enrichment.Transcript, catalog []string) ([]enrichment.QuestionStat, error)
}

// QuestionMatcher is implemented by *enrichment.Matcher.
type QuestionMatcher interface {
	MatchQuestions(ctx context.Context, transcript string, catalog []string) ([]string, error)
}

type Config struct {
	AgentIDs []string
	MaxCalls int
	// Catalog is used when a request brings none.
	Catalog []string
}

type QuestionStatsRequest struct {
	Catalog  []string `json:"catalog"`
	MaxCalls int      `json:"max_calls"`
}

type QuestionStatsReport struct {
	Stats               []enrichment.QuestionStat `json:"stats"`
	CallsConsidered     int                       `json:"calls_considered"`
	TranscriptsAnalyzed int                       `json:"transcripts_analyzed"`
	GeneratedAt         time.Time                 `json:"generated_at"`
}

// CallQuestions lists the catalog questions asked in one call.
type CallQuestions struct {
	CallID    string   `json:"call_id"`
	Questions []string `json:"questions"`
}

type Service struct {
	source     CallSource
	classifier QuestionClassifier
	matcher    QuestionMatcher
	cfg        Config
	clock      func() time.Time
}

func NewService(source CallSource, classifier QuestionClassifier, matcher QuestionMatcher, cfg Config) *Service {
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = DefaultMaxCalls
	}
	cfg.Catalog = cleanCatalog(cfg.Catalog)
	return &Service{source: source, classifier: classifier, matcher: matcher, cfg: cfg, clock: time.Now}
}

// QuestionStats classifies the transcripts of the most recent ended calls.
// Classifier errors, including rate limits and
// enrichment.ErrClassificationInProgress, are returned unchanged.
func (s *Service) QuestionStats(ctx context.Context, req QuestionStatsRequest) (QuestionStatsReport, error) {
	catalog, err := s.catalogFor(req.Catalog)
	if err != nil {
		return QuestionStatsReport{}, err
	}
	limit := req.MaxCalls
	if limit <= 0 || limit > s.cfg.MaxCalls {
		limit = s.cfg.MaxCalls
	}

	calls, err := s.recentCalls(ctx, limit)
	if err != nil {
		return QuestionStatsReport{}, err
	}
	transcripts := s.transcripts(ctx, calls)

	stats, err := s.classifier.BatchClassifyQuestions(ctx, transcripts, catalog)
	if err != nil {
		return QuestionStatsReport{}, err
	}
	return QuestionStatsReport{
		Stats:               stats,
		CallsConsidered:     len(calls),
		TranscriptsAnalyzed: len(transcripts),
		GeneratedAt:         s.clock().UTC(),
	}, nil
}

func (s *Service) catalogFor(requested []string) ([]string, error) {
	catalog := cleanCatalog(requested)
	if len(catalog) == 0 {
		catalog = s.cfg.Catalog
	}
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	return catalog, nil
}

// MatchCall finds the catalog questions asked in a single call. Rate limits
// are retried inside the matcher.
func (s *Service) MatchCall(ctx context.Context, callID string, catalog []string) (CallQuestions, error) {
	if s.matcher == nil {
		return CallQuestions{}, errors.New("insights: question matcher not configured")
	}
	catalog, err := s.catalogFor(catalog)
	if err != nil {
		return CallQuestions{}, err
	}
	call, err := s.source.GetCall(ctx, callID)
	if err != nil {
		return CallQuestions{}, err
	}
	text := call.TranscriptText()
	if text == "" {
		return CallQuestions{}, ErrNoTranscript
	}
	qs, err := s.matcher.MatchQuestions(ctx, text, catalog)
	if err != nil {
		return CallQuestions{}, err
	}
	return CallQuestions{CallID: callID, Questions: qs}, nil
}

func (s *Service) recentCalls(ctx context.Context, limit int) ([]voiceagent.CallRecord, error) {
	filter := voiceagent.ListCallsFilter{
		AgentIDs: s.cfg.AgentIDs,
		Statuses: []voiceagent.CallStatus{voiceagent.CallStatusEnded},
		Limit:    limit,
	}
	if filter.Limit > pageSize {
		filter.Limit = pageSize
	}
	out := make([]voiceagent.CallRecord, 0, limit)
	err := voiceagent.Paginate(ctx, s.source, filter, func(batch []voiceagent.CallRecord) error {
		for _, c := range batch {
			out = append(out, c)
			if len(out) == limit {
				return errEnough
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return nil, err
	}
	return out, nil
}

// transcripts re-fetches calls whose list record has no transcript. A failed
// fetch drops that call only.
func (s *Service) transcripts(ctx context.Context, calls []voiceagent.CallRecord) []enrichment.Transcript {
	log := logger.From(ctx)
	out := make([]enrichment.Transcript, 0, len(calls))
	for _, c := range calls {
		text := c.TranscriptText()
		if text == "" {
			full, err := s.source.GetCall(ctx, c.CallID)
			if err != nil {
				log.Warn("transcript fetch failed", slog.String("call_id", c.CallID), slog.Any("err", err))
				continue
			}
			text = full.TranscriptText()
		}
		if text == "" {
			continue
		}
		out = append(out, enrichment.Transcript{ID: c.CallID, Text: text})
	}
	return out
}
