package voiceagent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter/pkg/logger"
	"callcenter/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "voiceagent:"

// CachedPlatform serves the slow-changing configuration reads (agents, phone
// numbers, knowledge bases) from Redis. Calls are never cached. Cache errors
// are logged and fall through to the platform.
type CachedPlatform struct {
	Platform
	rdb redis.Cmdable
	ttl time.Duration
}

func NewCachedPlatform(p Platform, rdb redis.Cmdable, ttl time.Duration) *CachedPlatform {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedPlatform{Platform: p, rdb: rdb, ttl: ttl}
}

func cached[T any](ctx context.Context, c *CachedPlatform, key string, load func() (T, error)) (T, error) {
	var v T
	err := utils.CacheGetJSON(ctx, c.rdb, cachePrefix+key, &v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		logger.From(ctx).Warn("voiceagent cache read failed", slog.String("key", key), slog.Any("err", err))
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	if err := utils.CacheSetJSON(ctx, c.rdb, cachePrefix+key, v, c.ttl); err != nil {
		logger.From(ctx).Warn("voiceagent cache write failed", slog.String("key", key), slog.Any("err", err))
	}
	return v, nil
}

func (c *CachedPlatform) invalidate(ctx context.Context, keys ...string) {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, cachePrefix+k)
	}
	if err := utils.CacheDelete(ctx, c.rdb, full...); err != nil {
		logger.From(ctx).Warn("voiceagent cache invalidation failed", slog.Any("err", err))
	}
}

func (c *CachedPlatform) ListAgents(ctx context.Context) ([]Agent, error) {
	return cached(ctx, c, "agents", func() ([]Agent, error) { return c.Platform.ListAgents(ctx) })
}

func (c *CachedPlatform) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	return cached(ctx, c, "agent:"+agentID, func() (Agent, error) { return c.Platform.GetAgent(ctx, agentID) })
}

func (c *CachedPlatform) CreateAgent(ctx context.Context, body AgentUpdate) (Agent, error) {
	a, err := c.Platform.CreateAgent(ctx, body)
	if err == nil {
		c.invalidate(ctx, "agents")
	}
	return a, err
}

func (c *CachedPlatform) UpdateAgent(ctx context.Context, agentID string, body AgentUpdate) (Agent, error) {
	a, err := c.Platform.UpdateAgent(ctx, agentID, body)
	if err == nil {
		c.invalidate(ctx, "agents", "agent:"+agentID)
	}
	return a, err
}

func (c *CachedPlatform) DeleteAgent(ctx context.Context, agentID string) error {
	err := c.Platform.DeleteAgent(ctx, agentID)
	if err == nil {
		c.invalidate(ctx, "agents", "agent:"+agentID)
	}
	return err
}

func (c *CachedPlatform) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	return cached(ctx, c, "phone-numbers", func() ([]PhoneNumber, error) { return c.Platform.ListPhoneNumbers(ctx) })
}

func (c *CachedPlatform) GetPhoneNumber(ctx context.Context, phoneNumberID string) (PhoneNumber, error) {
	return cached(ctx, c, "phone-number:"+phoneNumberID, func() (PhoneNumber, error) {
		return c.Platform.GetPhoneNumber(ctx, phoneNumberID)
	})
}

func (c *CachedPlatform) GetKnowledgeBase(ctx context.Context, knowledgeBaseID string) (KnowledgeBase, error) {
	return cached(ctx, c, "knowledge-base:"+knowledgeBaseID, func() (KnowledgeBase, error) {
		return c.Platform.GetKnowledgeBase(ctx, knowledgeBaseID)
	})
}
