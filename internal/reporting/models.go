package reporting

import "time"

// TimeRange is half-open: From inclusive, To exclusive. Zero bounds are open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) contains(t time.Time) bool {
	if t.IsZero() {
		return r.From.IsZero() && r.To.IsZero()
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// CallsSummaryRequest requests aggregated platform call metrics.
type CallsSummaryRequest struct {
	Range    TimeRange `json:"range"`
	AgentIDs []string  `json:"agent_ids,omitempty"`
}

type CallsSummary struct {
	TotalCalls     int            `json:"total_calls"`
	ByStatus       map[string]int `json:"by_status"`
	CompletedCalls int            `json:"completed_calls"`
	OngoingCalls   int            `json:"ongoing_calls"`
	FailedCalls    int            `json:"failed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int     `json:"recorded_calls"`
	TotalCost     float64 `json:"total_cost"`

	// Truncated is set when the scan stopped at the configured maximum.
	Truncated bool `json:"truncated,omitempty"`
}

// EnrichmentSummary breaks persisted calls down by extracted sentiment and
// intent.
type EnrichmentSummary struct {
	TotalCalls    int            `json:"total_calls"`
	DegradedCalls int            `json:"degraded_calls"`
	BySentiment   map[string]int `json:"by_sentiment"`
	ByIntent      map[string]int `json:"by_intent"`
	TopIntents    []IntentCount  `json:"top_intents"`
}

type IntentCount struct {
	Intent string `json:"intent"`
	Count  int    `json:"count"`
}

// Report is what the dashboard's analytics page renders.
type Report struct {
	Calls       CallsSummary      `json:"calls"`
	Enrichment  EnrichmentSummary `json:"enrichment"`
	GeneratedAt time.Time         `json:"generated_at"`
}
