package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/radieske/pool-market-poc/internal/market-service/engine"
)

// unlockLua só apaga a chave se o token ainda for o nosso,
// evitando liberar o lock de outra réplica após expirar o TTL
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis é o engine.Locker para várias réplicas do market-service compartilhando o Postgres.
// SETNX com TTL; tenta de novo a cada Retry até o ctx expirar.
type Redis struct {
	rdb      *redis.Client
	ttl      time.Duration
	retry    time.Duration
	unlockSc *redis.Script
}

// NewRedis cria o locker; ttl deve cobrir a operação mais lenta sob lock
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		rdb:      rdb,
		ttl:      ttl,
		retry:    25 * time.Millisecond,
		unlockSc: redis.NewScript(unlockLua),
	}
}

var _ engine.Locker = (*Redis)(nil)

func key(marketID int64) string { return "lock:market:" + strconv.FormatInt(marketID, 10) }

func (l *Redis) Lock(ctx context.Context, marketID int64) (func(), error) {
	token := uuid.NewString()
	k := key(marketID)

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("market %d: %w: %v", marketID, engine.ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("market %d: %w: %v", marketID, engine.ErrLockTimeout, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// contexto próprio: o do chamador pode já ter sido cancelado
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// se falhar, o TTL expira a chave de qualquer forma
		_ = l.unlockSc.Run(uctx, l.rdb, []string{k}, token).Err()
	}, nil
}
