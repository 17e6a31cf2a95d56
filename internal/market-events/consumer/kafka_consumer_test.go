package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

type fakeCache struct {
	last map[int64]events.Envelope
	err  error
}

func (c *fakeCache) SetLast(_ context.Context, env events.Envelope) error {
	if c.err != nil {
		return c.err
	}
	c.last[env.MarketID] = env
	return nil
}

type fakeLog struct{ offsets []int64 }

func (l *fakeLog) Append(_ context.Context, _ events.Envelope, _ int, offset int64) error {
	l.offsets = append(l.offsets, offset)
	return nil
}

type fakeBroadcaster struct {
	channel string
	sent    [][]byte
}

func (b *fakeBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	b.channel = channel
	b.sent = append(b.sent, payload)
	return nil
}

// sliceReader entrega as mensagens e depois bloqueia até o ctx acabar.
// drained fecha na primeira leitura sem mensagens: tudo antes já foi processado.
type sliceReader struct {
	msgs    []kafka.Message
	drained chan struct{}
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		if r.drained != nil {
			close(r.drained)
			r.drained = nil
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

type stageCounter map[string]int

func newProcessor(t *testing.T, r MessageReader, c *fakeCache, l *fakeLog, b *fakeBroadcaster, stages stageCounter) *Processor {
	return &Processor{
		Log:         zaptest.NewLogger(t),
		Reader:      r,
		Cache:       c,
		History:     l,
		Broadcaster: b,
		Channel:     "market_events_broadcast",
		OnConsumed:  func() { stages["consumed"]++ },
		OnCached:    func() { stages["cached"]++ },
		OnPersist:   func() { stages["persisted"]++ },
		OnBroadcast: func() { stages["broadcast"]++ },
		OnError:     func(s string) { stages["err:"+s]++ },
	}
}

func envelopeMsg(t *testing.T, offset int64, typ string, marketID int64) kafka.Message {
	env, err := events.Wrap(typ, marketID, map[string]int64{"market_id": marketID})
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	c := &fakeCache{last: map[int64]events.Envelope{}}
	l := &fakeLog{}
	b := &fakeBroadcaster{}
	stages := stageCounter{}
	drained := make(chan struct{})
	r := &sliceReader{drained: drained, msgs: []kafka.Message{
		envelopeMsg(t, 1, events.TypeMarketCreated, 3),
		envelopeMsg(t, 2, events.TypeBetPlaced, 3),
		{Offset: 3, Value: []byte("not json")},
	}}
	p := newProcessor(t, r, c, l, b, stages)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-drained:
	case <-time.After(3 * time.Second):
		t.Fatal("reader not drained")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, events.TypeBetPlaced, c.last[3].Type)
	assert.Equal(t, []int64{1, 2}, l.offsets)
	assert.Len(t, b.sent, 2)
	assert.Equal(t, "market_events_broadcast", b.channel)
	assert.Equal(t, 3, stages["consumed"])
	assert.Equal(t, 1, stages["err:decode"])
}

func TestHandleContinuesWhenCacheFails(t *testing.T) {
	c := &fakeCache{last: map[int64]events.Envelope{}, err: errors.New("redis down")}
	l := &fakeLog{}
	b := &fakeBroadcaster{}
	stages := stageCounter{}
	p := newProcessor(t, nil, c, l, b, stages)

	p.Handle(context.Background(), envelopeMsg(t, 9, events.TypeMarketResolved, 1))

	assert.Equal(t, 1, stages["err:cache"])
	assert.Equal(t, 0, stages["cached"])
	assert.Equal(t, 1, stages["persisted"])
	assert.Equal(t, 1, stages["broadcast"])
}

type fakeDLQ struct{ msgs []kafka.Message }

func (d *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.msgs = append(d.msgs, msgs...)
	return nil
}

func TestHandleSendsUndecodableToDLQ(t *testing.T) {
	b := &fakeBroadcaster{}
	dlq := &fakeDLQ{}
	stages := stageCounter{}
	p := newProcessor(t, nil, &fakeCache{last: map[int64]events.Envelope{}}, &fakeLog{}, b, stages)
	p.DLQ = dlq

	p.Handle(context.Background(), kafka.Message{Key: []byte("1"), Value: []byte(`{"market_id":1}`)})

	assert.Equal(t, 1, stages["err:decode"])
	assert.Empty(t, b.sent)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "1", string(dlq.msgs[0].Key))
}
