package store

import (
	"context"
	"errors"
	"testing"
)

type testDoc struct {
	ID    string `json:"id"`
	Phone string `json:"phone_number"`
	Name  string `json:"name,omitempty"`
	Calls int    `json:"total_calls"`
	When  string `json:"updated_at"`
}

func TestMemoryStore_SetGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "customers", "c1", testDoc{ID: "c1", Phone: "+15551234567", Calls: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Update(ctx, "customers", "c1", map[string]any{"name": "Alice", "total_calls": 2}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var got testDoc
	if err := s.Get(ctx, "customers", "c1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Alice" || got.Calls != 2 || got.Phone != "+15551234567" {
		t.Fatalf("unexpected doc: %+v", got)
	}

	if err := s.Delete(ctx, "customers", "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Get(ctx, "customers", "c1", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Update(ctx, "customers", "c1", map[string]any{"name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestMemoryStore_FindFiltersOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	docs := []testDoc{
		{ID: "a", Phone: "1", Calls: 3, When: "2024-01-02T00:00:00Z"},
		{ID: "b", Phone: "1", Calls: 1, When: "2024-01-03T00:00:00Z"},
		{ID: "c", Phone: "2", Calls: 5, When: "2024-01-01T00:00:00Z"},
		{ID: "d", Phone: "1", Calls: 10, When: "2024-01-01T00:00:00Z"},
	}
	for _, d := range docs {
		if err := s.Set(ctx, "customers", d.ID, d); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	raws, err := s.Find(ctx, "customers", Where("phone_number", "1").OrderByDesc("updated_at").WithLimit(2))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got, err := Decode[testDoc](raws)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}

	// numeric ordering, not lexical ("10" < "3" as strings)
	raws, err = s.Find(ctx, "customers", Query{}.OrderByAsc("total_calls"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got, _ = Decode[testDoc](raws)
	if got[0].ID != "b" || got[len(got)-1].ID != "d" {
		t.Fatalf("unexpected numeric order: %+v", got)
	}

	// int filter matches float64 stored value
	raws, _ = s.Find(ctx, "customers", Where("total_calls", 5))
	if len(raws) != 1 {
		t.Fatalf("expected 1 match on numeric filter, got %d", len(raws))
	}
}

func TestMemoryStore_RejectsEmptyKeys(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Set(context.Background(), "", "x", testDoc{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if err := s.Set(context.Background(), "c", "x", "not an object"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for scalar doc, got %v", err)
	}
}
