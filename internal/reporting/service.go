// Package reporting aggregates call analytics from the platform call list
// and the persisted, enriched calls.
package reporting

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"callcenter/internal/customers"
	"callcenter/internal/enrichment"
	"callcenter/internal/voiceagent"
)

const (
	DefaultMaxCalls = 1000
	topIntents      = 5
	pageSize        = 100
)

var (
	ErrInvalidRequest = errors.New("reporting: invalid request")
	errScanLimit      = errors.New("reporting: scan limit reached")
)

// CallSource lists platform calls.
type CallSource interface {
	ListCalls(ctx context.Context, f voiceagent.ListCallsFilter) ([]voiceagent.CallRecord, error)
}

// StoredCalls lists persisted calls; *customers.Service implements it.
type StoredCalls interface {
	ListCalls(ctx context.Context, limit int) ([]customers.Call, error)
}

type Service struct {
	platform CallSource
	stored   StoredCalls
	agentIDs []string
	maxCalls int
	clock    func() time.Time
}

// NewService scans at most maxCalls records per source. agentIDs is the
// default platform scope when a request names none.
func NewService(platform CallSource, stored StoredCalls, agentIDs []string, maxCalls int) *Service {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	return &Service{platform: platform, stored: stored, agentIDs: agentIDs, maxCalls: maxCalls, clock: time.Now}
}

func validRange(r TimeRange) bool {
	return r.From.IsZero() || r.To.IsZero() || r.To.After(r.From)
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if !validRange(req.Range) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.platform == nil {
		return CallsSummary{}, errors.New("reporting: platform not configured")
	}
	agents := req.AgentIDs
	if len(agents) == 0 {
		agents = s.agentIDs
	}

	out := CallsSummary{ByStatus: map[string]int{}}
	scanned := 0
	err := voiceagent.Paginate(ctx, s.platform, voiceagent.ListCallsFilter{AgentIDs: agents, Limit: pageSize}, func(batch []voiceagent.CallRecord) error {
		for _, c := range batch {
			if scanned == s.maxCalls {
				return errScanLimit
			}
			scanned++
			if !req.Range.contains(c.StartedAt()) {
				continue
			}
			out.add(c)
		}
		return nil
	})
	switch {
	case errors.Is(err, errScanLimit):
		out.Truncated = true
	case err != nil:
		return CallsSummary{}, err
	}
	if out.CompletedCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.CompletedCalls
	}
	return out, nil
}

func (s *CallsSummary) add(c voiceagent.CallRecord) {
	s.TotalCalls++
	status := string(c.Status)
	if status == "" {
		status = "unknown"
	}
	s.ByStatus[status]++
	switch c.Status {
	case voiceagent.CallStatusEnded:
		s.CompletedCalls++
		s.TotalDurationSeconds += c.DurationSeconds()
	case voiceagent.CallStatusOngoing:
		s.OngoingCalls++
	case voiceagent.CallStatusError:
		s.FailedCalls++
	}
	if c.BestRecordingURL() != "" {
		s.RecordedCalls++
	}
	s.TotalCost += c.TotalCost()
}

func (s *Service) EnrichmentSummary(ctx context.Context, r TimeRange) (EnrichmentSummary, error) {
	if !validRange(r) {
		return EnrichmentSummary{}, ErrInvalidRequest
	}
	if s.stored == nil {
		return EnrichmentSummary{}, errors.New("reporting: call store not configured")
	}
	rows, err := s.stored.ListCalls(ctx, s.maxCalls)
	if err != nil {
		return EnrichmentSummary{}, err
	}

	out := EnrichmentSummary{BySentiment: map[string]int{}, ByIntent: map[string]int{}}
	for _, c := range rows {
		if !r.contains(c.Date) {
			continue
		}
		out.TotalCalls++
		data := c.ExtractedData
		if data.Degraded() {
			out.DegradedCalls++
		}
		sentiment := string(data.Sentiment)
		if sentiment == "" {
			sentiment = string(enrichment.SentimentNeutral)
		}
		out.BySentiment[sentiment]++
		intent := strings.ToLower(strings.TrimSpace(data.Intent))
		if intent == "" {
			intent = enrichment.IntentGeneral
		}
		out.ByIntent[intent]++
	}
	out.TopIntents = rankIntents(out.ByIntent, topIntents)
	return out, nil
}

func rankIntents(counts map[string]int, n int) []IntentCount {
	out := make([]IntentCount, 0, len(counts))
	for intent, c := range counts {
		out = append(out, IntentCount{Intent: intent, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Intent < out[j].Intent
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Report combines both summaries over the same range.
func (s *Service) Report(ctx context.Context, req CallsSummaryRequest) (Report, error) {
	calls, err := s.CallsSummary(ctx, req)
	if err != nil {
		return Report{}, err
	}
	enr, err := s.EnrichmentSummary(ctx, req.Range)
	if err != nil {
		return Report{}, err
	}
	return Report{Calls: calls, Enrichment: enr, GeneratedAt: s.clock().UTC()}, nil
}
