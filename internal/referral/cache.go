package referral

import (
	"context"
	"encoding/json"
	"time"

	"ms-revenue/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a read-through cache for Validate lookups. Codes change
// rarely, so a short TTL is enough to keep a reassigned code from
// resolving stale.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

func cacheKey(code string) string {
	return "referral_code:" + code
}

func (c *RedisCache) GetModerator(ctx context.Context, code string) (*models.User, bool) {
	val, err := c.Client.Get(ctx, cacheKey(code)).Result()
	if err != nil {
		// redis.Nil and transport errors both fall through to the DB
		return nil, false
	}

	var user models.User
	if err := json.Unmarshal([]byte(val), &user); err != nil {
		return nil, false
	}
	return &user, true
}

func (c *RedisCache) SetModerator(ctx context.Context, code string, user *models.User) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	// Best effort: a failed cache write only costs a DB read later
	c.Client.Set(ctx, cacheKey(code), data, c.TTL)
}
