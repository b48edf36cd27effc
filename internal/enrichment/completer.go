// Package enrichment turns call transcripts into structured data using LLM
// providers: per-call extraction with model fallback, batch question
// classification and greeting-context generation.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Request is one chat-style completion.
type Request struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool // ask the provider for a JSON object response
	Temperature float64
	MaxTokens   int
}

// Completer sends a prompt to one provider and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var ErrEmptyResponse = errors.New("enrichment: empty model response")

const DefaultRetryAfter = 60 * time.Second

// RateLimitError is returned when a provider throttles the caller.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	after := e.RetryAfter
	if after <= 0 {
		after = DefaultRetryAfter
	}
	return fmt.Sprintf("%s: rate limited, retry after %d seconds", e.Provider, int(math.Ceil(after.Seconds())))
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is, or wraps, a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// StripCodeFences removes a surrounding ``` or ```json fence from a reply.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line, e.g. "json".
		if tag := strings.TrimSpace(s[:i]); !strings.ContainsAny(tag, "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
