package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/customers"
	"callcenter/internal/enrichment"
	"callcenter/internal/ingest"
	"callcenter/internal/insights"
	"callcenter/internal/reporting"
	"callcenter/internal/store"
	"callcenter/internal/voiceagent"

	"github.com/gin-gonic/gin"
)

// fakePlatform serves a fixed set of calls and agents.
type fakePlatform struct {
	calls  map[string]voiceagent.CallRecord
	agents map[string]voiceagent.Agent
	ended  []string
}

func (p *fakePlatform) ListCalls(ctx context.Context, f voiceagent.ListCallsFilter) ([]voiceagent.CallRecord, error) {
	if f.Offset > 0 {
		return nil, nil
	}
	var out []voiceagent.CallRecord
	for _, c := range p.calls {
		c.Transcript = nil
		if len(f.Statuses) > 0 && c.Status != f.Statuses[0] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *fakePlatform) GetCall(ctx context.Context, id string) (voiceagent.CallRecord, error) {
	c, ok := p.calls[id]
	if !ok {
		return voiceagent.CallRecord{}, &voiceagent.APIError{StatusCode: http.StatusNotFound}
	}
	return c, nil
}

func (p *fakePlatform) EndCall(ctx context.Context, id string) error {
	p.ended = append(p.ended, id)
	return nil
}

func (p *fakePlatform) CreatePhoneCall(ctx context.Context, req voiceagent.CreatePhoneCallRequest) (voiceagent.CallRecord, error) {
	return voiceagent.CallRecord{CallID: "out_1", ToNumber: req.ToNumber, Status: voiceagent.CallStatusRegistered}, nil
}

func (p *fakePlatform) ListAgents(ctx context.Context) ([]voiceagent.Agent, error) {
	out := make([]voiceagent.Agent, 0, len(p.agents))
	for _, a := range p.agents {
		out = append(out, a)
	}
	return out, nil
}

func (p *fakePlatform) GetAgent(ctx context.Context, id string) (voiceagent.Agent, error) {
	a, ok := p.agents[id]
	if !ok {
		return voiceagent.Agent{}, &voiceagent.APIError{StatusCode: http.StatusNotFound}
	}
	return a, nil
}

func (p *fakePlatform) CreateAgent(ctx context.Context, body voiceagent.AgentUpdate) (voiceagent.Agent, error) {
	return voiceagent.Agent{AgentID: "agent_new"}, nil
}

func (p *fakePlatform) UpdateAgent(ctx context.Context, id string, body voiceagent.AgentUpdate) (voiceagent.Agent, error) {
	a := p.agents[id]
	if v, ok := body["enable_transcription"].(bool); ok {
		a.EnableTranscription = &v
	}
	p.agents[id] = a
	return a, nil
}

func (p *fakePlatform) DeleteAgent(ctx context.Context, id string) error {
	delete(p.agents, id)
	return nil
}

func (p *fakePlatform) ListPhoneNumbers(ctx context.Context) ([]voiceagent.PhoneNumber, error) {
	return []voiceagent.PhoneNumber{{PhoneNumber: "+15550000000"}}, nil
}

func (p *fakePlatform) GetPhoneNumber(ctx context.Context, id string) (voiceagent.PhoneNumber, error) {
	return voiceagent.PhoneNumber{PhoneNumberID: id}, nil
}

func (p *fakePlatform) GetKnowledgeBase(ctx context.Context, id string) (voiceagent.KnowledgeBase, error) {
	return voiceagent.KnowledgeBase{KnowledgeBaseID: id}, nil
}

type fixedExtractor struct{}

func (fixedExtractor) Extract(ctx context.Context, transcript string) enrichment.ExtractedCallData {
	return enrichment.ExtractedCallData{CustomerName: "Bob", Intent: "billing", Sentiment: enrichment.SentimentNeutral}
}

type rateLimitedClassifier struct{}

func (rateLimitedClassifier) BatchClassifyQuestions(context.Context, []enrichment.Transcript, []string) ([]enrichment.QuestionStat, error) {
	return nil, &enrichment.RateLimitError{Provider: "bedrock", RetryAfter: enrichment.DefaultRetryAfter}
}

type staticCompleter string

func (s staticCompleter) Complete(context.Context, enrichment.Request) (string, error) {
	return string(s), nil
}

type testServer struct {
	engine   *gin.Engine
	platform *fakePlatform
	audit    *audit.MemoryRepo
	st       *store.MemoryStore
}

func strp(s string) *string { return &s }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := &fakePlatform{
		calls: map[string]voiceagent.CallRecord{
			"c_done":   {CallID: "c_done", Status: voiceagent.CallStatusEnded, ToNumber: "+15551234567", DurationMS: 42000, Transcript: strp("Customer: my bill is wrong")},
			"c_silent": {CallID: "c_silent", Status: voiceagent.CallStatusEnded, ToNumber: "+15559999999"},
			"c_live":   {CallID: "c_live", Status: voiceagent.CallStatusOngoing, ToNumber: "+15558888888"},
		},
		agents: map[string]voiceagent.Agent{"agent_1": {AgentID: "agent_1"}},
	}
	st := store.NewMemoryStore()
	cust := customers.NewService(st, nil)
	rec := ingest.NewReconciler(cust, fixedExtractor{})
	repo := audit.NewMemoryRepo()

	h := Handlers{
		Platform:  p,
		Calls:     calls.NewService(p, cust, nil),
		Customers: cust,
		Ingest:    ingest.NewDriver(p, cust, rec, ingest.DriverConfig{}),
		Insights:  insights.NewService(p, rateLimitedClassifier{}, enrichment.NewMatcher(staticCompleter(`["Q"]`), ""), insights.Config{Catalog: []string{"Q"}}),
		Reports:   reporting.NewService(p, cust, nil, 0),
		Audit:     audit.NewService(repo),
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "staff-1", role))
		}
		c.Next()
	})
	h.Register(v1)
	return &testServer{engine: r, platform: p, audit: repo, st: st}
}

func (s *testServer) do(method, path, role, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestIngestRun_ProcessesAndReportsStats(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/ingest/run", "operator", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[ingest.BatchResult](t, w)
	if res.Processed != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected batch %+v", res)
	}

	w = s.do(http.MethodGet, "/v1/ingest/stats", "viewer", "")
	stats := decode[ingest.Stats](t, w)
	if stats.Runs != 1 || stats.Processed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	w = s.do(http.MethodGet, "/v1/customers", "viewer", "")
	list := decode[struct {
		Customers []customers.Customer `json:"customers"`
	}](t, w)
	if len(list.Customers) != 1 || list.Customers[0].Name != "Bob" {
		t.Fatalf("unexpected customers %+v", list.Customers)
	}

	evs := s.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeIngestTriggered || evs[0].ActorUserID != "staff-1" {
		t.Fatalf("unexpected audit trail %+v", evs)
	}
}

func TestIngestCall_Errors(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(http.MethodPost, "/v1/ingest/calls/c_silent", "operator", ""); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing transcript, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/ingest/calls/nope", "operator", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown call, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/ingest/calls/c_done", "operator", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/ingest/calls/c_done", "operator", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on reprocessing, got %d", w.Code)
	}
}

func TestRoleChecks(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(http.MethodGet, "/v1/calls/active", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/calls", "viewer", `{"from_number":"+1","to_number":"+2"}`); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer write, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/v1/agents/agent_1", "operator", ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator delete, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/v1/agents/agent_1", "admin", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin delete, got %d", w.Code)
	}
}

func TestCallsRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/v1/calls/active", "viewer", "")
	active := decode[struct {
		Calls []calls.Call `json:"calls"`
	}](t, w)
	if len(active.Calls) != 1 || active.Calls[0].CallID != "c_live" {
		t.Fatalf("unexpected active calls %+v", active.Calls)
	}

	w = s.do(http.MethodGet, "/v1/calls/c_done", "viewer", "")
	if w.Code != http.StatusOK || decode[calls.Call](t, w).DurationSeconds != 42 {
		t.Fatalf("unexpected call response %d %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/v1/calls", "operator", `{"from_number":"+1 555 000 0000","to_number":"+1 555 123 4567"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if w := s.do(http.MethodPost, "/v1/calls/c_live/end", "operator", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(s.platform.ended) != 1 {
		t.Fatalf("expected end call sent")
	}
	if w := s.do(http.MethodGet, "/v1/calls?limit=abc", "viewer", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestAgentRoutes(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(http.MethodGet, "/v1/agents/missing", "viewer", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w := s.do(http.MethodPost, "/v1/agents/agent_1/transcription", "operator", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if a := s.platform.agents["agent_1"]; a.EnableTranscription == nil || !*a.EnableTranscription {
		t.Fatalf("expected transcription enabled, got %+v", a)
	}
	if w := s.do(http.MethodPatch, "/v1/agents/agent_1", "operator", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", w.Code)
	}
}

func TestCustomerRoutes(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(http.MethodGet, "/v1/customers/unknown", "viewer", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/ingest/calls/c_done", "operator", ""); w.Code != http.StatusOK {
		t.Fatalf("ingest: %d", w.Code)
	}

	w := s.do(http.MethodGet, "/v1/customers/by-phone/15551234567/knowledge", "viewer", "")
	kb := decode[customers.KnowledgeBase](t, w)
	if kb.Customer == nil || len(kb.CallHistory) != 1 {
		t.Fatalf("unexpected knowledge base %+v", kb)
	}

	if w := s.do(http.MethodDelete, "/v1/customers/"+kb.Customer.ID, "admin", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/v1/customers/"+kb.Customer.ID+"/calls", "viewer", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/v1/events/upcoming", "viewer", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestQuestionStats_RateLimitIs429(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/insights/questions", "viewer", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
	if !strings.Contains(w.Body.String(), "retry after 60 seconds") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestCallReport(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/v1/reports/calls", "viewer", "")
	rep := decode[reporting.Report](t, w)
	if rep.Calls.TotalCalls != 3 || rep.Calls.CompletedCalls != 2 {
		t.Fatalf("unexpected report %+v", rep.Calls)
	}
	if w := s.do(http.MethodGet, "/v1/reports/calls?from=yesterday", "viewer", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallQuestions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/insights/calls/c_done/questions", "viewer", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[insights.CallQuestions](t, w)
	if len(got.Questions) != 1 || got.Questions[0] != "Q" {
		t.Fatalf("unexpected questions %+v", got)
	}
	if w := s.do(http.MethodPost, "/v1/insights/calls/c_silent/questions", "viewer", ""); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}
