package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"callcenter/internal/customers"
	"callcenter/internal/enrichment"
	"callcenter/internal/voiceagent"
)

type fakeSource struct {
	calls   []voiceagent.CallRecord
	filters []voiceagent.ListCallsFilter
}

func (f *fakeSource) ListCalls(ctx context.Context, flt voiceagent.ListCallsFilter) ([]voiceagent.CallRecord, error) {
	f.filters = append(f.filters, flt)
	if flt.Offset >= len(f.calls) {
		return nil, nil
	}
	end := flt.Offset + flt.Limit
	if end > len(f.calls) {
		end = len(f.calls)
	}
	return f.calls[flt.Offset:end], nil
}

type fakeStored []customers.Call

func (f fakeStored) ListCalls(ctx context.Context, limit int) ([]customers.Call, error) {
	return f, nil
}

var now = time.Unix(1700000000, 0).UTC()

func record(id string, status voiceagent.CallStatus, durMS int64, recorded bool, cost float64) voiceagent.CallRecord {
	c := voiceagent.CallRecord{CallID: id, Status: status, StartTimestamp: now.UnixMilli(), DurationMS: durMS}
	if recorded {
		c.ScrubbedRecordingURL = "https://rec/" + id
	}
	if cost > 0 {
		c.Cost = &voiceagent.CallCost{TotalCost: cost}
	}
	return c
}

func TestCallsSummary_Aggregates(t *testing.T) {
	src := &fakeSource{calls: []voiceagent.CallRecord{
		record("c1", voiceagent.CallStatusEnded, 30000, true, 0.5),
		record("c2", voiceagent.CallStatusEnded, 90000, false, 1.25),
		record("c3", voiceagent.CallStatusOngoing, 0, false, 0),
		record("c4", voiceagent.CallStatusError, 0, false, 0),
	}}
	svc := NewService(src, nil, []string{"agent_1"}, 0)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.CompletedCalls != 2 || out.OngoingCalls != 1 || out.FailedCalls != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.TotalDurationSeconds != 120 || out.AverageDurationSeconds != 60 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.RecordedCalls != 1 || out.TotalCost != 1.75 || out.ByStatus["ended"] != 2 {
		t.Fatalf("unexpected totals: %+v", out)
	}
	if src.filters[0].AgentIDs[0] != "agent_1" {
		t.Fatalf("expected default agent scope, got %+v", src.filters[0])
	}
}

func TestCallsSummary_RangeAndTruncation(t *testing.T) {
	old := record("old", voiceagent.CallStatusEnded, 1000, false, 0)
	old.StartTimestamp = now.Add(-48 * time.Hour).UnixMilli()
	src := &fakeSource{calls: []voiceagent.CallRecord{
		record("c1", voiceagent.CallStatusEnded, 1000, false, 0),
		old,
		record("c3", voiceagent.CallStatusEnded, 1000, false, 0),
	}}
	svc := NewService(src, nil, nil, 2)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 || !out.Truncated {
		t.Fatalf("expected one in-range call and truncation, got %+v", out)
	}

	_, err = svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: TimeRange{From: now, To: now.Add(-time.Hour)}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestEnrichmentSummary_Breakdown(t *testing.T) {
	stored := fakeStored{
		{ID: "1", Date: now, ExtractedData: enrichment.ExtractedCallData{Intent: "Appointment", Sentiment: enrichment.SentimentPositive}},
		{ID: "2", Date: now, ExtractedData: enrichment.ExtractedCallData{Intent: "appointment", Sentiment: enrichment.SentimentNegative}},
		{ID: "3", Date: now, ExtractedData: enrichment.ExtractedCallData{Metadata: map[string]any{"degraded": true}}},
		{ID: "4", Date: now.Add(-72 * time.Hour), ExtractedData: enrichment.ExtractedCallData{Intent: "billing"}},
	}
	svc := NewService(&fakeSource{}, stored, nil, 0)

	out, err := svc.EnrichmentSummary(context.Background(), TimeRange{From: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.DegradedCalls != 1 {
		t.Fatalf("unexpected totals: %+v", out)
	}
	if out.ByIntent["appointment"] != 2 || out.ByIntent[enrichment.IntentGeneral] != 1 {
		t.Fatalf("unexpected intents: %v", out.ByIntent)
	}
	if out.BySentiment["neutral"] != 1 || out.BySentiment["positive"] != 1 {
		t.Fatalf("unexpected sentiments: %v", out.BySentiment)
	}
	if out.TopIntents[0] != (IntentCount{Intent: "appointment", Count: 2}) {
		t.Fatalf("unexpected ranking: %v", out.TopIntents)
	}
}

func TestReport_CombinesSummaries(t *testing.T) {
	svc := NewService(&fakeSource{calls: []voiceagent.CallRecord{record("c1", voiceagent.CallStatusEnded, 1000, false, 0)}}, fakeStored{{ID: "1", Date: now}}, nil, 0)
	rep, err := svc.Report(context.Background(), CallsSummaryRequest{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rep.Calls.TotalCalls != 1 || rep.Enrichment.TotalCalls != 1 || rep.GeneratedAt.IsZero() {
		t.Fatalf("unexpected report %+v", rep)
	}
}
