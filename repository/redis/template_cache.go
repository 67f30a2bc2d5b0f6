package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/moodlog/backend/domain"
	"github.com/moodlog/backend/repository"
)

type templateCache struct {
	client *redislib.Client
	next   repository.TemplateCatalog
	prefix string
	ttl    time.Duration
}

// NewTemplateCache wraps a TemplateCatalog with a Redis read-through cache.
// Templates change rarely and every progress update reads one, so a short TTL
// keeps the hot path off Postgres without a manual invalidation protocol.
func NewTemplateCache(client *redislib.Client, next repository.TemplateCatalog, ttl time.Duration) repository.TemplateCatalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &templateCache{
		client: client,
		next:   next,
		prefix: "challenge:template:",
		ttl:    ttl,
	}
}

func (c *templateCache) GetByID(ctx context.Context, id string) (*domain.ChallengeTemplate, error) {
	if tpl, ok := c.lookup(ctx, c.key("id", id)); ok {
		return tpl, nil
	}

	tpl, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.key("id", id), tpl)
	return tpl, nil
}

func (c *templateCache) FindActiveByType(ctx context.Context, typ domain.ChallengeType) (*domain.ChallengeTemplate, error) {
	if tpl, ok := c.lookup(ctx, c.key("type", string(typ))); ok {
		return tpl, nil
	}

	tpl, err := c.next.FindActiveByType(ctx, typ)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.key("type", string(typ)), tpl)
	return tpl, nil
}

func (c *templateCache) lookup(ctx context.Context, key string) (*domain.ChallengeTemplate, bool) {
	result, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var tpl domain.ChallengeTemplate
	if err := json.Unmarshal([]byte(result), &tpl); err != nil {
		return nil, false
	}
	return &tpl, true
}

func (c *templateCache) store(ctx context.Context, key string, tpl *domain.ChallengeTemplate) {
	payload, err := json.Marshal(tpl)
	if err != nil {
		return
	}
	// cache failures are invisible to callers; the next read hits Postgres
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *templateCache) key(kind, value string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, kind, value)
}
