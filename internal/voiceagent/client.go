package voiceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voiceagent: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// NotFound reports whether the platform answered 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Client talks to the Retell-style REST API with a bearer key.
// No retries: callers decide how to handle failures.
type Client struct {
	http    HTTPDoer
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

var _ Platform = (*Client)(nil)

type listCallsBody struct {
	FilterCriteria *filterCriteria `json:"filter_criteria,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Offset         int             `json:"offset,omitempty"`
	SortOrder      string          `json:"sort_order,omitempty"`
}

type filterCriteria struct {
	AgentID    []string     `json:"agent_id,omitempty"`
	CallStatus []CallStatus `json:"call_status,omitempty"`
}

func (c *Client) ListCalls(ctx context.Context, f ListCallsFilter) ([]CallRecord, error) {
	body := listCallsBody{Limit: f.Limit, Offset: f.Offset, SortOrder: "descending"}
	if len(f.AgentIDs) > 0 || len(f.Statuses) > 0 {
		body.FilterCriteria = &filterCriteria{AgentID: f.AgentIDs, CallStatus: f.Statuses}
	}
	var out []CallRecord
	if err := c.do(ctx, http.MethodPost, "/v2/list-calls", nil, body, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = out[i].Normalize()
		// List payloads are not authoritative for transcripts.
		out[i].Transcript = nil
	}
	return out, nil
}

func (c *Client) GetCall(ctx context.Context, callID string) (CallRecord, error) {
	if callID == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	var out CallRecord
	if err := c.do(ctx, http.MethodGet, "/v2/get-call", url.Values{"call_id": {callID}}, nil, &out); err != nil {
		return CallRecord{}, err
	}
	return out.Normalize(), nil
}

func (c *Client) EndCall(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	body := map[string]any{"call_id": callID, "end_call": true}
	return c.do(ctx, http.MethodPatch, "/v2/update-call", nil, body, nil)
}

func (c *Client) CreatePhoneCall(ctx context.Context, req CreatePhoneCallRequest) (CallRecord, error) {
	if req.FromNumber == "" || req.ToNumber == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	var out CallRecord
	if err := c.do(ctx, http.MethodPost, "/v2/create-phone-call", nil, req, &out); err != nil {
		return CallRecord{}, err
	}
	return out.Normalize(), nil
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.do(ctx, http.MethodGet, "/list-agents", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	if agentID == "" {
		return Agent{}, ErrInvalidArgument
	}
	var out Agent
	err := c.do(ctx, http.MethodGet, "/get-agent", url.Values{"agent_id": {agentID}}, nil, &out)
	return out, err
}

func (c *Client) CreateAgent(ctx context.Context, body AgentUpdate) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodPost, "/create-agent", nil, body, &out)
	return out, err
}

func (c *Client) UpdateAgent(ctx context.Context, agentID string, body AgentUpdate) (Agent, error) {
	if agentID == "" {
		return Agent{}, ErrInvalidArgument
	}
	payload := make(map[string]any, len(body)+1)
	for k, v := range body {
		payload[k] = v
	}
	payload["agent_id"] = agentID
	var out Agent
	err := c.do(ctx, http.MethodPatch, "/update-agent", nil, payload, &out)
	return out, err
}

func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	return c.do(ctx, http.MethodDelete, "/delete-agent", url.Values{"agent_id": {agentID}}, nil, nil)
}

// ListPhoneNumbers accepts either a bare array or {"phone_numbers": [...]}.
func (c *Client) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/list-phone-numbers", nil, nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []PhoneNumber
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("voiceagent: decode phone numbers: %w", err)
		}
		return out, nil
	}
	var wrapped struct {
		PhoneNumbers []PhoneNumber `json:"phone_numbers"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("voiceagent: decode phone numbers: %w", err)
	}
	return wrapped.PhoneNumbers, nil
}

func (c *Client) GetPhoneNumber(ctx context.Context, phoneNumberID string) (PhoneNumber, error) {
	if phoneNumberID == "" {
		return PhoneNumber{}, ErrInvalidArgument
	}
	var out PhoneNumber
	err := c.do(ctx, http.MethodGet, "/get-phone-number", url.Values{"phone_number_id": {phoneNumberID}}, nil, &out)
	return out, err
}

func (c *Client) GetKnowledgeBase(ctx context.Context, knowledgeBaseID string) (KnowledgeBase, error) {
	if knowledgeBaseID == "" {
		return KnowledgeBase{}, ErrInvalidArgument
	}
	var out KnowledgeBase
	err := c.do(ctx, http.MethodGet, "/get-knowledge-base/"+url.PathEscape(knowledgeBaseID), nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("voiceagent: encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voiceagent: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("voiceagent: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("voiceagent: decode %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
