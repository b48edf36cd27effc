// Package store is a small collection-style document store.
//
// Documents are JSON objects addressed by (collection, id). Queries support
// equality filters on top-level fields, a single order-by field and a limit.
// Implementations: MemoryStore (tests/local), PostgresStore (JSONB rows) and
// DynamoStore (single-table DynamoDB).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("store: document not found")
	ErrInvalidArgument = errors.New("store: invalid argument")
)

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where starts a query with one equality filter.
func Where(field string, value any) Query {
	return Query{Where: []Filter{{Field: field, Value: value}}}
}

// And adds another equality filter.
func (q Query) And(field string, value any) Query {
	q.Where = append(append([]Filter(nil), q.Where...), Filter{Field: field, Value: value})
	return q
}

func (q Query) OrderByAsc(field string) Query {
	q.OrderBy, q.Desc = field, false
	return q
}

func (q Query) OrderByDesc(field string) Query {
	q.OrderBy, q.Desc = field, true
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Store is the persistence contract used by the customer and audit layers.
type Store interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Set(ctx context.Context, collection, id string, doc any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
}

// Decode unmarshals raw documents into a typed slice.
func Decode[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("store: decode: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func validateKey(collection, id string) error {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(id) == "" {
		return ErrInvalidArgument
	}
	return nil
}

func validateQuery(collection string, q Query) error {
	if strings.TrimSpace(collection) == "" || q.Limit < 0 {
		return ErrInvalidArgument
	}
	for _, f := range q.Where {
		if strings.TrimSpace(f.Field) == "" {
			return ErrInvalidArgument
		}
	}
	return nil
}

// toFields converts any JSON-encodable object into its generic map form.
func toFields(doc any) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrInvalidArgument)
	}
	return m, nil
}

// normalize puts a value into the same shape it has after a JSON round trip,
// so filter values compare equal to stored fields (int 3 and float64 3).
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func canonical(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func matches(doc map[string]any, where []Filter) bool {
	for _, f := range where {
		got, ok := doc[f.Field]
		if !ok {
			return false
		}
		if canonical(got) != canonical(normalize(f.Value)) {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	return strings.Compare(canonical(a), canonical(b))
}

// applyQuery filters, orders and limits generic documents in memory.
// Shared by the memory store and the DynamoDB store (whose Query cannot sort
// on arbitrary attributes).
func applyQuery(docs []map[string]any, q Query) ([]json.RawMessage, error) {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if matches(d, q.Where) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	raws := make([]json.RawMessage, 0, len(out))
	for _, d := range out {
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("store: encode: %w", err)
		}
		raws = append(raws, b)
	}
	return raws, nil
}
