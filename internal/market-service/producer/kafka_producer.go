package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/pool-market-poc/internal/market-service/engine"
	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// MessageWriter é o subconjunto do *kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica as notificações do engine no tópico market_events.
// A chave é o id do mercado, então os eventos de um mercado mantêm a ordem na partição.
type KafkaPublisher struct {
	Writer MessageWriter
	now    func() time.Time
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, now: time.Now}
}

var _ engine.Notifier = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishMarketCreated(ctx context.Context, e events.MarketCreated) error {
	e.TsUnixMs = p.now().UnixMilli()
	return p.publish(ctx, events.TypeMarketCreated, e.MarketID, e)
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.now().UnixMilli()
	return p.publish(ctx, events.TypeBetPlaced, e.MarketID, e)
}

func (p *KafkaPublisher) PublishMarketResolved(ctx context.Context, e events.MarketResolved) error {
	e.TsUnixMs = p.now().UnixMilli()
	return p.publish(ctx, events.TypeMarketResolved, e.MarketID, e)
}

func (p *KafkaPublisher) PublishWinningsWithdrawn(ctx context.Context, e events.WinningsWithdrawn) error {
	e.TsUnixMs = p.now().UnixMilli()
	return p.publish(ctx, events.TypeWinningsWithdrawn, e.MarketID, e)
}

func (p *KafkaPublisher) publish(ctx context.Context, typ string, marketID int64, payload any) error {
	env, err := events.Wrap(typ, marketID, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(marketID, 10)),
		Value: b,
		Time:  p.now(),
	})
}
