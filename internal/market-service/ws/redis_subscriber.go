package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// RunRedisSubscriber escuta o canal Pub/Sub do worker e repassa cada envelope ao Hub.
// Bloqueia até o ctx terminar; roda dentro do errgroup do main.
func RunRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) error {
	sub := r.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()

	log.Info("ws redis subscriber started", zap.String("channel", channel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env events.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn("ws subscriber unmarshal error", zap.Error(err))
				continue
			}
			hub.Broadcast(env)
		}
	}
}
