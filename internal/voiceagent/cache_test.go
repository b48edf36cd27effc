package voiceagent

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingPlatform struct {
	Platform
	listAgents int
	getAgent   int
}

func (p *countingPlatform) ListAgents(ctx context.Context) ([]Agent, error) {
	p.listAgents++
	return []Agent{{AgentID: "a1", AgentName: "Reception"}}, nil
}

func (p *countingPlatform) GetAgent(ctx context.Context, id string) (Agent, error) {
	p.getAgent++
	return Agent{AgentID: id}, nil
}

func (p *countingPlatform) UpdateAgent(ctx context.Context, id string, body AgentUpdate) (Agent, error) {
	return Agent{AgentID: id}, nil
}

func newCache(t *testing.T, p Platform) (*CachedPlatform, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCachedPlatform(p, rdb, time.Minute), mr
}

func TestCachedPlatform_ServesAgentsFromCache(t *testing.T) {
	inner := &countingPlatform{}
	c, _ := newCache(t, inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		agents, err := c.ListAgents(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(agents) != 1 || agents[0].AgentName != "Reception" {
			t.Fatalf("unexpected agents %+v", agents)
		}
	}
	if inner.listAgents != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.listAgents)
	}
}

func TestCachedPlatform_UpdateInvalidates(t *testing.T) {
	inner := &countingPlatform{}
	c, mr := newCache(t, inner)
	ctx := context.Background()

	_, _ = c.GetAgent(ctx, "a1")
	_, _ = c.ListAgents(ctx)
	if !mr.Exists(cachePrefix + "agent:a1") {
		t.Fatalf("expected agent cached")
	}

	if _, err := c.UpdateAgent(ctx, "a1", AgentUpdate{"agent_name": "New"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(cachePrefix+"agent:a1") || mr.Exists(cachePrefix+"agents") {
		t.Fatalf("expected cache invalidated after update")
	}

	_, _ = c.GetAgent(ctx, "a1")
	if inner.getAgent != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", inner.getAgent)
	}
}

func TestCachedPlatform_FallsThroughWhenRedisDown(t *testing.T) {
	inner := &countingPlatform{}
	c, mr := newCache(t, inner)
	mr.Close()

	agents, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("expected fallthrough, got %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("unexpected agents %+v", agents)
	}
}
