package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func newPublisher(w *fakeWriter) *KafkaPublisher {
	p := NewKafkaPublisher(w)
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return p
}

func TestPublishBetPlacedWrapsEnvelope(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)

	err := p.PublishBetPlaced(context.Background(), events.BetPlaced{
		MarketID: 7, UserID: "alice", OptionIndex: 1, AmountCents: 300, TotalPool: 500, OptionPool: 300,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "7", string(w.msgs[0].Key))

	var env events.Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, events.TypeBetPlaced, env.Type)
	assert.Equal(t, int64(7), env.MarketID)

	var got events.BetPlaced
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, int64(300), got.AmountCents)
	assert.Equal(t, int64(1_700_000_000_000), got.TsUnixMs)
}

func TestPublishEachType(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)
	ctx := context.Background()

	require.NoError(t, p.PublishMarketCreated(ctx, events.MarketCreated{MarketID: 1, Options: []string{"A", "B"}}))
	require.NoError(t, p.PublishMarketResolved(ctx, events.MarketResolved{MarketID: 1, WinningOption: 0}))
	require.NoError(t, p.PublishWinningsWithdrawn(ctx, events.WinningsWithdrawn{MarketID: 1, UserID: "bob"}))

	want := []string{events.TypeMarketCreated, events.TypeMarketResolved, events.TypeWinningsWithdrawn}
	require.Len(t, w.msgs, len(want))
	for i, typ := range want {
		var env events.Envelope
		require.NoError(t, json.Unmarshal(w.msgs[i].Value, &env))
		assert.Equal(t, typ, env.Type)
	}
}

func TestPublishPropagatesWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newPublisher(&fakeWriter{err: boom})
	err := p.PublishMarketCreated(context.Background(), events.MarketCreated{MarketID: 3})
	assert.ErrorIs(t, err, boom)
}
