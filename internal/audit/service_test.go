package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"callcenter/internal/auth"
	"callcenter/internal/store"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{CallID: "c"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("expected nothing appended")
	}
}

func TestService_CapturesActorFromContext(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := auth.WithIdentity(context.Background(), "u-1", "operator")

	if err := svc.Append(ctx, Event{Type: EventTypeCallEnded, CallID: "c1", IPAddress: "1.2.3.4"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.ActorUserID != "u-1" || e.ActorRole != "operator" || e.IPAddress != "1.2.3.4" {
		t.Fatalf("expected actor captured, got %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp filled")
	}
}

type failingRepo struct{}

func (failingRepo) Append(context.Context, Event) error { return errors.New("down") }

func TestService_RecordIsBestEffort(t *testing.T) {
	NewService(failingRepo{}).Record(context.Background(), Event{Type: EventTypeIngestTriggered})

	var nilSvc *Service
	nilSvc.Record(context.Background(), Event{Type: EventTypeIngestTriggered})
}

func TestStoreRepo_RecentNewestFirst(t *testing.T) {
	repo := NewStoreRepo(store.NewMemoryStore())
	svc := NewService(repo)
	base := time.Date(2024, 11, 5, 9, 0, 0, 0, time.UTC)
	for i, typ := range []EventType{EventTypeAgentCreated, EventTypeAgentUpdated, EventTypeAgentDeleted} {
		if err := svc.Append(context.Background(), Event{Type: typ, AgentID: "a1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Type != EventTypeAgentDeleted || got[1].Type != EventTypeAgentUpdated {
		t.Fatalf("unexpected order %+v", got)
	}
}
