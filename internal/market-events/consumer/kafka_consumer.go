package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type SnapshotCache interface {
	SetLast(ctx context.Context, env events.Envelope) error
}

type EventLog interface {
	Append(ctx context.Context, env events.Envelope, partition int, offset int64) error
}

// DeadLetters recebe as mensagens que não puderam ser decodificadas
type DeadLetters interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome market_events, atualiza o snapshot no Redis, grava o histórico
// e repassa ao WebSocket via Pub/Sub. History e DLQ são opcionais.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Cache       SnapshotCache
	History     EventLog
	Broadcaster Broadcaster
	Channel     string
	DLQ         DeadLetters // opcional

	OnConsumed  func()       // métricas (counter++)
	OnCached    func()       // métricas
	OnPersist   func()       // métricas
	OnBroadcast func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop de consumo; retorna quando o ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Falha em uma etapa não impede as seguintes:
// o snapshot e o broadcast são best-effort, o histórico é a fonte de auditoria.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.Type == "" {
		p.Log.Warn("invalid message", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return
	}

	if err := p.Cache.SetLast(ctx, env); err != nil {
		p.Log.Warn("redis set failed", zap.Int64("market_id", env.MarketID), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	if p.History != nil {
		if err := p.History.Append(ctx, env, m.Partition, m.Offset); err != nil {
			p.Log.Warn("db append failed", zap.Int64("market_id", env.MarketID), zap.Error(err))
			p.fail("db_append")
		} else if p.OnPersist != nil {
			p.OnPersist()
		}
	}

	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(bctx, p.Channel, m.Value); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.Int64("market_id", env.MarketID), zap.Error(err))
		p.fail("broadcast")
		return
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.DLQ.WriteMessages(dctx, kafka.Message{Key: m.Key, Value: m.Value}); err != nil {
		p.Log.Warn("dlq write failed", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
