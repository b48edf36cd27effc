package enrichment

import (
	"context"
	"sync"
)

// scriptedCompleter answers per model; a model with no entry errors.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  map[string]string
	errs     map[string]error
	requests []Request
}

func (s *scriptedCompleter) Complete(ctx context.Context, r Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
	if err, ok := s.errs[r.Model]; ok {
		return "", err
	}
	if reply, ok := s.replies[r.Model]; ok {
		return reply, nil
	}
	return "", ErrEmptyResponse
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// funcCompleter adapts a function.
type funcCompleter func(ctx context.Context, r Request) (string, error)

func (f funcCompleter) Complete(ctx context.Context, r Request) (string, error) { return f(ctx, r) }
