package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameMarket(t *testing.T) {
	k := NewKeyedMutex()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), 7)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, k.size())
}

func TestKeyedMutex_IndependentMarkets(t *testing.T) {
	k := NewKeyedMutex()
	unlockA, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := k.Lock(ctx, 2)
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_Timeout(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, 1)
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock() // idempotente
	assert.Zero(t, k.size())
}

func TestKeyedMutex_WaiterAcquiresAfterRelease(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), 3)
	require.NoError(t, err)

	got := make(chan func(), 1)
	go func() {
		u, err := k.Lock(context.Background(), 3)
		if assert.NoError(t, err) {
			got <- u
		}
	}()

	select {
	case <-got:
		t.Fatal("second Lock acquired while the first was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case u := <-got:
		u()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
	assert.Zero(t, k.size())
}

func TestKeyedMutex_CancelledContextNeverAcquires(t *testing.T) {
	k := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.Lock(ctx, 4)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Zero(t, k.size())
}
