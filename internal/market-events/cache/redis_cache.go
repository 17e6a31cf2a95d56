package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// RedisCache guarda o último envelope de cada mercado.
// O WebSocket do market-service lê daqui para o replay no subscribe.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(marketID int64) string { return "market:last:" + strconv.FormatInt(marketID, 10) }

// SetLast sobrescreve o snapshot do mercado
func (r *RedisCache) SetLast(ctx context.Context, env events.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(env.MarketID), b, r.TTL).Err()
}

// GetLast devolve o snapshot; ok=false quando não existe ou expirou
func (r *RedisCache) GetLast(ctx context.Context, marketID int64) (events.Envelope, bool, error) {
	var env events.Envelope
	b, err := r.Client.Get(ctx, key(marketID)).Bytes()
	if err == redis.Nil {
		return env, false, nil
	}
	if err != nil {
		return env, false, err
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, false, err
	}
	return env, true, nil
}
