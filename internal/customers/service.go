// Package customers persists customers, processed calls and scheduled events
// in the document store and builds the per-customer knowledge base.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callcenter/internal/store"

	"github.com/google/uuid"
)

const (
	CollectionCustomers = "customers"
	CollectionCalls     = "calls"
	CollectionEvents    = "scheduled_events"
)

const (
	DefaultListLimit    = 100
	DefaultHistoryLimit = 10
	DefaultCallsLimit   = 1000
	DefaultEventsLimit  = 50
)

var (
	ErrNotFound        = errors.New("customers: not found")
	ErrInvalidArgument = errors.New("customers: invalid argument")
)

// NewCustomer carries the fields known when a customer is first seen.
type NewCustomer struct {
	PhoneNumber string
	Name        string
	Email       string
	Company     string
	Metadata    map[string]any
}

type Service struct {
	store store.Store
	gen   ContextGenerator
	clock func() time.Time
	newID func() string
}

// NewService wires the customer service. gen may be nil, in which case the
// next-call context is the knowledge-base text alone.
func NewService(st store.Store, gen ContextGenerator) *Service {
	return &Service{store: st, gen: gen, clock: time.Now, newID: uuid.NewString}
}

// now is second precision so stored RFC 3339 text sorts chronologically.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

// FindByPhone tries each lookup candidate in order; the first match wins.
// Customers are never looked up by name.
func (s *Service) FindByPhone(ctx context.Context, phone string) (Customer, error) {
	if strings.TrimSpace(phone) == "" {
		return Customer{}, ErrInvalidArgument
	}
	for _, key := range LookupCandidates(phone) {
		raws, err := s.store.Find(ctx, CollectionCustomers, store.Where("phone_number", key).WithLimit(1))
		if err != nil {
			return Customer{}, fmt.Errorf("customers: lookup %q: %w", key, err)
		}
		if len(raws) == 0 {
			continue
		}
		found, err := store.Decode[Customer](raws)
		if err != nil {
			return Customer{}, err
		}
		return found[0], nil
	}
	return Customer{}, ErrNotFound
}

// Create stores a new customer under the normalized phone number.
func (s *Service) Create(ctx context.Context, in NewCustomer) (Customer, error) {
	phone := NormalizePhone(in.PhoneNumber)
	if phone == "" || phone == "+" {
		return Customer{}, ErrInvalidArgument
	}
	now := s.now()
	c := Customer{
		ID:          s.newID(),
		PhoneNumber: phone,
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Company:     strings.TrimSpace(in.Company),
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    in.Metadata,
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if err := s.store.Set(ctx, CollectionCustomers, c.ID, c); err != nil {
		return Customer{}, fmt.Errorf("customers: create: %w", err)
	}
	return c, nil
}

// FillEmpty sets name, email and company only where the customer has none.
// It reports whether anything was written.
func (s *Service) FillEmpty(ctx context.Context, c Customer, name, email, company string) (Customer, bool, error) {
	fields := map[string]any{}
	if v := strings.TrimSpace(name); v != "" && c.Name == "" {
		fields["name"] = v
	}
	if v := strings.TrimSpace(email); v != "" && c.Email == "" {
		fields["email"] = v
	}
	if v := strings.TrimSpace(company); v != "" && c.Company == "" {
		fields["company"] = v
	}
	if len(fields) == 0 {
		return c, false, nil
	}
	now := s.now()
	fields["updated_at"] = now
	if err := s.store.Update(ctx, CollectionCustomers, c.ID, fields); err != nil {
		return c, false, fmt.Errorf("customers: update %s: %w", c.ID, err)
	}
	if v, ok := fields["name"].(string); ok {
		c.Name = v
	}
	if v, ok := fields["email"].(string); ok {
		c.Email = v
	}
	if v, ok := fields["company"].(string); ok {
		c.Company = v
	}
	c.UpdatedAt = now
	return c, true, nil
}

// RecordCall bumps the call counter and last-call date.
func (s *Service) RecordCall(ctx context.Context, c Customer) (Customer, error) {
	now := s.now()
	fields := map[string]any{
		"total_calls":    c.TotalCalls + 1,
		"last_call_date": now,
		"updated_at":     now,
	}
	if err := s.store.Update(ctx, CollectionCustomers, c.ID, fields); err != nil {
		return c, fmt.Errorf("customers: record call %s: %w", c.ID, err)
	}
	c.TotalCalls++
	c.LastCallDate = &now
	c.UpdatedAt = now
	return c, nil
}

// SaveCall appends a processed call. ID, date and status are filled when unset.
func (s *Service) SaveCall(ctx context.Context, call Call) (Call, error) {
	if call.CustomerID == "" || call.ExternalCallID == "" {
		return Call{}, ErrInvalidArgument
	}
	if call.ID == "" {
		call.ID = s.newID()
	}
	if call.Date.IsZero() {
		call.Date = s.now()
	}
	if call.Status == "" {
		call.Status = CallStatusCompleted
	}
	if err := s.store.Set(ctx, CollectionCalls, call.ID, call); err != nil {
		return Call{}, fmt.Errorf("customers: save call %s: %w", call.ExternalCallID, err)
	}
	return call, nil
}

// SaveEvent appends a scheduled event.
func (s *Service) SaveEvent(ctx context.Context, e Event) (Event, error) {
	if e.CustomerID == "" || e.CallID == "" {
		return Event{}, ErrInvalidArgument
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Type == "" {
		e.Type = DefaultEventType
	}
	if e.Status == "" {
		e.Status = EventStatusScheduled
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := s.store.Set(ctx, CollectionEvents, e.ID, e); err != nil {
		return Event{}, fmt.Errorf("customers: save event: %w", err)
	}
	return e, nil
}

// IsCallProcessed reports whether a platform call id already has a Call row.
func (s *Service) IsCallProcessed(ctx context.Context, externalCallID string) (bool, error) {
	if externalCallID == "" {
		return false, ErrInvalidArgument
	}
	raws, err := s.store.Find(ctx, CollectionCalls, store.Where("external_call_id", externalCallID).WithLimit(1))
	if err != nil {
		return false, fmt.Errorf("customers: processed check: %w", err)
	}
	return len(raws) > 0, nil
}

func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	if id == "" {
		return Customer{}, ErrInvalidArgument
	}
	var c Customer
	if err := s.store.Get(ctx, CollectionCustomers, id, &c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

// List returns the most recently updated customers first.
func (s *Service) List(ctx context.Context, limit int) ([]Customer, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	raws, err := s.store.Find(ctx, CollectionCustomers, store.Query{}.OrderByDesc("updated_at").WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return store.Decode[Customer](raws)
}

// Delete removes a customer and cascades to its calls and scheduled events.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, CollectionCustomers, id); err != nil {
		return fmt.Errorf("customers: delete %s: %w", id, err)
	}
	for _, coll := range []string{CollectionCalls, CollectionEvents} {
		raws, err := s.store.Find(ctx, coll, store.Where("customer_id", id))
		if err != nil {
			return fmt.Errorf("customers: cascade %s: %w", coll, err)
		}
		docs, err := store.Decode[struct {
			ID string `json:"id"`
		}](raws)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := s.store.Delete(ctx, coll, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("customers: cascade %s/%s: %w", coll, d.ID, err)
			}
		}
	}
	return nil
}

// CallHistory returns a customer's calls, newest first.
func (s *Service) CallHistory(ctx context.Context, customerID string, limit int) ([]Call, error) {
	if customerID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	raws, err := s.store.Find(ctx, CollectionCalls, store.Where("customer_id", customerID).OrderByDesc("date").WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return store.Decode[Call](raws)
}

// ListCalls returns all processed calls, newest first.
func (s *Service) ListCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = DefaultCallsLimit
	}
	raws, err := s.store.Find(ctx, CollectionCalls, store.Query{}.OrderByDesc("date").WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return store.Decode[Call](raws)
}

// CustomerEvents returns a customer's scheduled events by date ascending.
func (s *Service) CustomerEvents(ctx context.Context, customerID string) ([]Event, error) {
	if customerID == "" {
		return nil, ErrInvalidArgument
	}
	q := store.Where("customer_id", customerID).And("status", string(EventStatusScheduled)).OrderByAsc("date")
	raws, err := s.store.Find(ctx, CollectionEvents, q)
	if err != nil {
		return nil, err
	}
	return store.Decode[Event](raws)
}

// UpcomingEvents returns scheduled events dated today or later. Events with
// no date are left out.
func (s *Service) UpcomingEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	today := s.now().Format(time.DateOnly)
	raws, err := s.store.Find(ctx, CollectionEvents, store.Where("status", string(EventStatusScheduled)).OrderByAsc("date"))
	if err != nil {
		return nil, err
	}
	all, err := store.Decode[Event](raws)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, limit)
	for _, e := range all {
		if e.Date == "" || e.Date < today {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
