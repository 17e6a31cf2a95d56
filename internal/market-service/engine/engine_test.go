package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/pool-market-poc/internal/market-service/repo"
	"github.com/radieske/pool-market-poc/internal/testutil"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	eng      *Engine
	store    *repo.Memory
	clock    *testutil.FakeClock
	payer    *testutil.FakePayer
	notifier *testutil.RecordingNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    repo.NewMemory(),
		clock:    testutil.NewFakeClock(t0),
		payer:    &testutil.FakePayer{},
		notifier: &testutil.RecordingNotifier{},
	}
	opts = append([]Option{WithClock(f.clock), WithLockWait(time.Second)}, opts...)
	f.eng = New(zaptest.NewLogger(t), f.store, f.payer, f.notifier, opts...)
	return f
}

// openMarket cria um mercado A/B de 100s para o criador "owner"
func (f *fixture) openMarket(t *testing.T, options ...string) int64 {
	t.Helper()
	if len(options) == 0 {
		options = []string{"A", "B"}
	}
	id, err := f.eng.CreateMarket(context.Background(), "owner", "Quem vence?", options, 100)
	require.NoError(t, err)
	return id
}

func (f *fixture) bet(t *testing.T, id int64, user string, option int, amount int64) {
	t.Helper()
	require.NoError(t, f.eng.PlaceBet(context.Background(), user, id, option, amount))
}

// resolve avança o relógio até o endTime e resolve como o criador
func (f *fixture) resolve(t *testing.T, id int64, winning int) {
	t.Helper()
	f.clock.Advance(100 * time.Second)
	require.NoError(t, f.eng.ResolveMarket(context.Background(), "owner", id, winning))
}
