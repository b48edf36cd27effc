package audit

import (
	"context"
	"fmt"

	"callcenter/internal/store"
)

const Collection = "audit_events"

// StoreRepo appends events as documents in the shared document store.
type StoreRepo struct {
	st store.Store
}

func NewStoreRepo(st store.Store) *StoreRepo { return &StoreRepo{st: st} }

func (r *StoreRepo) Append(ctx context.Context, e Event) error {
	if err := r.st.Set(ctx, Collection, e.ID, e); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (r *StoreRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	raws, err := r.st.Find(ctx, Collection, store.Query{}.OrderByDesc("created_at").WithLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return store.Decode[Event](raws)
}
