package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/pool-market-poc/internal/market-service/repo"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		stake, total, winning, want int64
	}{
		{100, 600, 400, 150},
		{300, 600, 400, 450},
		{1, 4, 3, 1},
		{2, 4, 3, 2},
		{7, 7, 7, 7},
		{0, 100, 50, 0},
		{10, 100, 0, 0},
		{math.MaxInt64, math.MaxInt64, math.MaxInt64, math.MaxInt64},
		{math.MaxInt64 / 2, math.MaxInt64 - 1, math.MaxInt64 - 1, math.MaxInt64 / 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Payout(tt.stake, tt.total, tt.winning),
			"Payout(%d, %d, %d)", tt.stake, tt.total, tt.winning)
	}
}

func TestWithdraw_ProportionalPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)

	f.bet(t, id, "user1", 0, 100)
	f.bet(t, id, "user2", 0, 300)
	f.bet(t, id, "user3", 1, 200)
	f.resolve(t, id, 0)

	paid, err := f.eng.WithdrawWinnings(ctx, "user1", id)
	require.NoError(t, err)
	assert.Equal(t, int64(150), paid)

	paid, err = f.eng.WithdrawWinnings(ctx, "user2", id)
	require.NoError(t, err)
	assert.Equal(t, int64(450), paid)

	_, err = f.eng.WithdrawWinnings(ctx, "user3", id)
	assert.ErrorIs(t, err, ErrNoWinningStake)

	assert.Equal(t, int64(600), f.payer.Total("user1")+f.payer.Total("user2"))
	require.Len(t, f.payer.Transfers, 2)
	assert.Equal(t, "payout:0:user1", f.payer.Transfers[0].ExternalRef)

	// pools continuam congelados depois dos saques
	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(600), m.TotalPool)
	assert.Equal(t, []int64{400, 200}, m.OptionPools)

	require.Len(t, f.notifier.Withdrawn, 2)
	assert.Equal(t, int64(450), f.notifier.Withdrawn[1].AmountCents)
}

func TestWithdraw_RoundingDustIsRetained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)

	f.bet(t, id, "w1", 0, 1)
	f.bet(t, id, "w2", 0, 2)
	f.bet(t, id, "loser", 1, 1)
	f.resolve(t, id, 0)

	p1, err := f.eng.WithdrawWinnings(ctx, "w1", id)
	require.NoError(t, err)
	p2, err := f.eng.WithdrawWinnings(ctx, "w2", id)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p1)
	assert.Equal(t, int64(2), p2)
	assert.Less(t, p1+p2, int64(4))
}

func TestWithdraw_NoDoublePayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)
	f.bet(t, id, "u1", 1, 50)
	f.bet(t, id, "u2", 0, 50)
	f.resolve(t, id, 1)

	paid, err := f.eng.WithdrawWinnings(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), paid)

	for i := 0; i < 3; i++ {
		_, err := f.eng.WithdrawWinnings(ctx, "u1", id)
		assert.ErrorIs(t, err, ErrNoWinningStake)
	}
	assert.Len(t, f.payer.Transfers, 1)

	stake, err := f.eng.GetUserBet(ctx, id, "u1", 1)
	require.NoError(t, err)
	assert.Zero(t, stake)
}

func TestWithdraw_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.WithdrawWinnings(ctx, "u1", 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not resolved", func(t *testing.T) {
		f := newFixture(t)
		id := f.openMarket(t)
		f.bet(t, id, "u1", 0, 10)
		f.clock.Advance(time.Hour)
		_, err := f.eng.WithdrawWinnings(ctx, "u1", id)
		assert.ErrorIs(t, err, ErrNotResolved)

		stake, err := f.eng.GetUserBet(ctx, id, "u1", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(10), stake)
	})

	t.Run("winning option without bets", func(t *testing.T) {
		f := newFixture(t)
		id := f.openMarket(t)
		f.bet(t, id, "u1", 0, 10)
		f.resolve(t, id, 1)
		_, err := f.eng.WithdrawWinnings(ctx, "u1", id)
		assert.ErrorIs(t, err, ErrNoWinningStake)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.WithdrawWinnings(ctx, "", 0)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

// O Payer chama o engine de volta antes de concluir a transferência:
// a chamada reentrante deve ver a reivindicação já zerada.
func TestWithdraw_ReentrantPayerCannotDoubleClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)
	f.bet(t, id, "attacker", 0, 40)
	f.bet(t, id, "honest", 1, 60)
	f.resolve(t, id, 0)

	var reentrantErr error
	calls := 0
	f.payer.Hook = func(ctx context.Context, user string) {
		calls++
		if calls > 1 {
			return
		}
		_, reentrantErr = f.eng.WithdrawWinnings(ctx, user, id)
	}

	paid, err := f.eng.WithdrawWinnings(ctx, "attacker", id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), paid)
	assert.ErrorIs(t, reentrantErr, ErrNoWinningStake)
	assert.Equal(t, int64(100), f.payer.Total("attacker"))
}

func TestWithdraw_TransferFailureKeepsClaimZeroed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)
	f.bet(t, id, "u1", 0, 10)
	f.resolve(t, id, 0)

	f.payer.Err = errors.New("wallet down")
	_, err := f.eng.WithdrawWinnings(ctx, "u1", id)
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.Contains(t, err.Error(), "wallet down")
	assert.Empty(t, f.notifier.Withdrawn)

	f.payer.Err = nil
	_, err = f.eng.WithdrawWinnings(ctx, "u1", id)
	assert.ErrorIs(t, err, ErrNoWinningStake)
	assert.Empty(t, f.payer.Transfers)
}

func TestClaimable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)
	f.bet(t, id, "u1", 0, 100)
	f.bet(t, id, "u2", 1, 300)

	got, err := f.eng.Claimable(ctx, id, "u1")
	require.NoError(t, err)
	assert.Zero(t, got, "unresolved market")

	f.resolve(t, id, 0)
	got, err = f.eng.Claimable(ctx, id, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), got)

	_, err = f.eng.WithdrawWinnings(ctx, "u1", id)
	require.NoError(t, err)
	got, err = f.eng.Claimable(ctx, id, "u1")
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = f.eng.Claimable(ctx, 9, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHooksAndNotifierFailures(t *testing.T) {
	ops := map[string]int{}
	var staked, paidOut int64
	f := newFixture(t, WithHooks(Hooks{
		OnOperation: func(op, code string) { ops[op+":"+code]++ },
		OnStake:     func(c int64) { staked += c },
		OnPayout:    func(c int64) { paidOut += c },
	}))
	f.notifier.Err = errors.New("kafka down")
	ctx := context.Background()

	id := f.openMarket(t)
	f.bet(t, id, "u1", 0, 30)
	require.ErrorIs(t, f.eng.PlaceBet(ctx, "u1", id, 0, 0), ErrZeroAmount)
	f.resolve(t, id, 0)
	paid, err := f.eng.WithdrawWinnings(ctx, "u1", id)
	require.NoError(t, err)

	assert.Equal(t, int64(30), paid)
	assert.Equal(t, int64(30), staked)
	assert.Equal(t, int64(30), paidOut)
	assert.Equal(t, 1, ops["create:OK"])
	assert.Equal(t, 1, ops["bet:OK"])
	assert.Equal(t, 1, ops["bet:ZERO_AMOUNT"])
	assert.Equal(t, 1, ops["resolve:OK"])
	assert.Equal(t, 1, ops["withdraw:OK"])
}

// sharedStore segura cada UserBet até que as duas réplicas tenham lido a aposta
type sharedStore struct {
	*repo.Memory
	readers *sync.WaitGroup
}

func (s *sharedStore) UserBet(ctx context.Context, id int64, user string, option int) (int64, error) {
	v, err := s.Memory.UserBet(ctx, id, user, option)
	if s.readers != nil {
		s.readers.Done()
		s.readers.Wait()
	}
	return v, err
}

// Duas réplicas com locks em processo independentes sobre o mesmo store:
// só uma delas consegue zerar a aposta e pagar.
func TestWithdraw_TwoReplicasSharingStorePayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openMarket(t)
	f.bet(t, id, "u", 0, 200)
	f.resolve(t, id, 0)

	store := &sharedStore{Memory: f.store, readers: &sync.WaitGroup{}}
	store.readers.Add(2)
	replicaA := New(zaptest.NewLogger(t), store, f.payer, f.notifier, WithClock(f.clock))
	replicaB := New(zaptest.NewLogger(t), store, f.payer, f.notifier, WithClock(f.clock))

	var wg sync.WaitGroup
	paid := make([]int64, 2)
	errs := make([]error, 2)
	for i, eng := range []*Engine{replicaA, replicaB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paid[i], errs[i] = eng.WithdrawWinnings(ctx, "u", id)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(200), paid[0]+paid[1])
	assert.Equal(t, int64(200), f.payer.Total("u"))
	require.Len(t, f.payer.Transfers, 1)
	failed := errs[0]
	if failed == nil {
		failed = errs[1]
	}
	assert.ErrorIs(t, failed, ErrNoWinningStake)
}
