package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBet_Accumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)

	f.bet(t, id, "u1", 0, 100)
	f.bet(t, id, "u1", 0, 25)
	f.bet(t, id, "u1", 1, 5)
	f.bet(t, id, "u2", 0, 10)

	got, err := f.eng.GetUserBet(ctx, id, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(125), got)

	pool, err := f.eng.GetOptionPool(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(135), pool)

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(140), m.TotalPool)

	require.Len(t, f.notifier.Bets, 4)
	last := f.notifier.Bets[3]
	assert.Equal(t, "u2", last.UserID)
	assert.Equal(t, int64(140), last.TotalPool)
	assert.Equal(t, int64(135), last.OptionPool)
}

func TestPlaceBet_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		prepare func(f *fixture, id int64)
		market  int64
		option  int
		amount  int64
		want    error
	}{
		{"unknown market", nil, 99, 0, 10, ErrNotFound},
		{"at end time", func(f *fixture, _ int64) { f.clock.Advance(100 * time.Second) }, 0, 0, 10, ErrMarketClosed},
		{"after end time", func(f *fixture, _ int64) { f.clock.Advance(time.Hour) }, 0, 0, 10, ErrMarketClosed},
		{"option out of range", nil, 0, 2, 10, ErrInvalidOption},
		{"negative option", nil, 0, -1, 10, ErrInvalidOption},
		{"zero amount", nil, 0, 0, 0, ErrZeroAmount},
		{"negative amount", nil, 0, 1, -10, ErrZeroAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.openMarket(t)
			if tt.prepare != nil {
				tt.prepare(f, id)
			}
			err := f.eng.PlaceBet(ctx, "u1", tt.market, tt.option, tt.amount)
			require.ErrorIs(t, err, tt.want)

			m, err := f.eng.GetMarket(ctx, id)
			require.NoError(t, err)
			assert.Zero(t, m.TotalPool)
			assert.Equal(t, []int64{0, 0}, m.OptionPools)
			assert.Empty(t, f.notifier.Bets)
		})
	}
}

func TestPlaceBet_ClosedAfterResolution(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)
	f.bet(t, id, "u1", 0, 10)
	f.resolve(t, id, 0)

	// mesmo voltando o relógio, mercado resolvido não aceita apostas
	f.clock.Set(t0)
	err := f.eng.PlaceBet(context.Background(), "u1", id, 0, 10)
	assert.ErrorIs(t, err, ErrMarketClosed)

	pool, err := f.eng.GetOptionPool(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pool)
}

func TestPlaceBet_Overflow(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)
	f.bet(t, id, "u1", 0, math.MaxInt64-10)

	err := f.eng.PlaceBet(context.Background(), "u2", id, 1, 11)
	assert.ErrorIs(t, err, ErrAmountTooLarge)

	f.bet(t, id, "u2", 1, 10)
	m, err := f.eng.GetMarket(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), m.TotalPool)
}

func TestPlaceBet_Anonymous(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)
	assert.ErrorIs(t, f.eng.PlaceBet(context.Background(), "", id, 0, 10), ErrUnauthorized)
}

func TestReadAccessors_InvalidOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)

	_, err := f.eng.GetUserBet(ctx, id, "u1", 5)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = f.eng.GetOptionPool(ctx, id, 5)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = f.eng.GetOptionPool(ctx, 42, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.eng.GetUserBet(ctx, id, "nobody", 1)
	require.NoError(t, err)
	assert.Zero(t, got)
}

// Conservação: totalPool == Σ optionPools e optionPools[i] == Σ userBets[u][i],
// inclusive com apostas concorrentes no mesmo mercado.
func TestPlaceBet_ConcurrentConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t, "A", "B", "C")

	const users, betsPerUser = 8, 25
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", u)
			for i := 0; i < betsPerUser; i++ {
				assert.NoError(t, f.eng.PlaceBet(ctx, user, id, (u+i)%3, int64(i+1)))
			}
		}(u)
	}
	wg.Wait()

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)

	var sumPools int64
	for opt, pool := range m.OptionPools {
		sumPools += pool
		var sumBets int64
		for u := 0; u < users; u++ {
			b, err := f.eng.GetUserBet(ctx, id, fmt.Sprintf("u%d", u), opt)
			require.NoError(t, err)
			sumBets += b
		}
		assert.Equal(t, pool, sumBets, "option %d", opt)
	}
	assert.Equal(t, m.TotalPool, sumPools)
	assert.Equal(t, int64(users*betsPerUser*(betsPerUser+1)/2), m.TotalPool)
}
