package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

func TestNewOpenAICompleter_Defaults(t *testing.T) {
	o := NewOpenAICompleter("", "key", nil)
	if o.http != http.DefaultClient {
		t.Fatalf("expected http.DefaultClient, got %#v", o.http)
	}
	if o.baseURL != "https://api.openai.com/v1" {
		t.Fatalf("unexpected base url %q", o.baseURL)
	}
}

func TestOpenAICompleter_SendsJSONModeAndReadsContent(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"intent\":\"support\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(srv.URL+"/v1", "sk-test", srv.Client())
	out, err := c.Complete(context.Background(), Request{Model: "gpt-4o-mini", System: "sys", Prompt: "hi", JSON: true, Temperature: 0.3})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"intent":"support"}` {
		t.Fatalf("unexpected content %q", out)
	}
	if got.Model != "gpt-4o-mini" || got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("unexpected request body %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAICompleter_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter(srv.URL, "k", srv.Client()).Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != 7*time.Second {
		t.Fatalf("expected 7s RateLimitError, got %v", err)
	}
}

func TestOpenAICompleter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter(srv.URL, "k", srv.Client()).Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if err == nil || IsRateLimit(err) || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected plain error with provider message, got %v", err)
	}
}

type fakeInvoker struct {
	in  *bedrockruntime.InvokeModelInput
	out []byte
	err error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.out}, nil
}

func TestBedrockCompleter_AnthropicMessagesBody(t *testing.T) {
	inv := &fakeInvoker{out: []byte(`{"content":[{"type":"text","text":"{\"results\":"},{"type":"text","text":"[]}"}]}`)}
	out, err := NewBedrockCompleter(inv).Complete(context.Background(), Request{Model: "anthropic.claude-3-haiku", System: "sys", Prompt: "classify", Temperature: 0.2})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"results":[]}` {
		t.Fatalf("unexpected text %q", out)
	}
	if *inv.in.ModelId != "anthropic.claude-3-haiku" {
		t.Fatalf("unexpected model %q", *inv.in.ModelId)
	}
	var body bedrockRequest
	if err := json.Unmarshal(inv.in.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AnthropicVersion != anthropicVersion || body.System != "sys" || body.MaxTokens <= 0 {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content[0].Text != "classify" {
		t.Fatalf("unexpected messages %+v", body.Messages)
	}
}

func TestBedrockCompleter_ThrottlingIsRateLimit(t *testing.T) {
	inv := &fakeInvoker{err: &types.ThrottlingException{Message: new(string)}}
	_, err := NewBedrockCompleter(inv).Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	if !IsRateLimit(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if !strings.Contains(err.Error(), "retry after 60 seconds") {
		t.Fatalf("expected default retry hint, got %q", err.Error())
	}
}

func TestContextGenerator_Fallback(t *testing.T) {
	c := funcCompleter(func(ctx context.Context, r Request) (string, error) {
		if r.MaxTokens != 150 || r.Model != DefaultContextModel {
			t.Errorf("unexpected request %+v", r)
		}
		return "", errors.New("down")
	})
	got := NewContextGenerator(c, "").CustomerContext(context.Background(), CustomerHistory{
		Name:          "Alice",
		PreviousCalls: []PriorCall{{Intent: "support"}, {Intent: "sales"}},
	})
	if got != "This is Alice. They've called 2 time(s) before." {
		t.Fatalf("unexpected fallback %q", got)
	}
}
