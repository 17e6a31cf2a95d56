package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker serializa as transições de estado de um mesmo mercado.
// Mercados diferentes nunca compartilham lock.
type Locker interface {
	Lock(ctx context.Context, marketID int64) (unlock func(), err error)
}

// KeyedMutex é o Locker em processo: um semaphore.Weighted de peso 1 por mercado,
// removido do mapa quando ninguém mais o referencia.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[int64]*slot)}
}

var _ Locker = (*KeyedMutex)(nil)

// Lock bloqueia até obter o mercado ou até o ctx expirar (ErrLockTimeout)
func (k *KeyedMutex) Lock(ctx context.Context, marketID int64) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[marketID]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		k.slots[marketID] = s
	}
	s.refs++
	k.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		k.release(marketID, s)
		return nil, fmt.Errorf("market %d: %w: %v", marketID, ErrLockTimeout, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			k.release(marketID, s)
		})
	}, nil
}

func (k *KeyedMutex) release(marketID int64, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, marketID)
	}
}

// size é usado nos testes para verificar que os slots são liberados
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
