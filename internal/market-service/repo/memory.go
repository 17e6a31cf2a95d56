package repo

import (
	"context"
	"math"
	"sync"
	"time"
)

// Memory mantém os mercados em uma arena (slice indexada pelo id).
// Seguro para uso concorrente; a serialização por mercado é responsabilidade do engine.
type Memory struct {
	mu          sync.RWMutex
	markets     []*Market
	bets        []map[betKey]int64 // mesmo índice de markets
	userMarkets map[string][]int64
}

// NewMemory cria um store vazio
func NewMemory() *Memory {
	return &Memory{userMarkets: make(map[string][]int64)}
}

var _ Store = (*Memory)(nil)

func (s *Memory) Create(_ context.Context, m *Market) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := int64(len(s.markets))
	rec := m.Clone()
	rec.ID = id
	if len(rec.OptionPools) != len(rec.Options) {
		rec.OptionPools = make([]int64, len(rec.Options))
	}
	s.markets = append(s.markets, rec)
	s.bets = append(s.bets, make(map[betKey]int64))
	s.userMarkets[rec.Creator] = append(s.userMarkets[rec.Creator], id)
	return id, nil
}

// lookup deve ser chamado com s.mu adquirido
func (s *Memory) lookup(id int64) (*Market, error) {
	if id < 0 || id >= int64(len(s.markets)) {
		return nil, ErrNotFound
	}
	return s.markets[id], nil
}

func (s *Memory) Get(_ context.Context, id int64) (*Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

func (s *Memory) UserBet(_ context.Context, id int64, user string, option int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	if option < 0 || option >= len(m.Options) {
		return 0, ErrOptionRange
	}
	return s.bets[id][betKey{user: user, option: option}], nil
}

func (s *Memory) UserMarkets(_ context.Context, user string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64{}, s.userMarkets[user]...), nil
}

func (s *Memory) AddStake(_ context.Context, id int64, user string, option int, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.lookup(id)
	if err != nil {
		return err
	}
	if option < 0 || option >= len(m.Options) {
		return ErrOptionRange
	}
	if m.Resolved {
		return ErrAlreadyClosed
	}
	// o total é sempre >= que qualquer pool ou aposta individual,
	// então basta checar o total para evitar overflow nos três contadores
	if amount > math.MaxInt64-m.TotalPool {
		return ErrPoolOverflow
	}
	k := betKey{user: user, option: option}
	s.bets[id][k] += amount
	m.OptionPools[option] += amount
	m.TotalPool += amount
	return nil
}

func (s *Memory) MarkResolved(_ context.Context, id int64, winningOption int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.lookup(id)
	if err != nil {
		return err
	}
	if winningOption < 0 || winningOption >= len(m.Options) {
		return ErrOptionRange
	}
	if m.Resolved {
		return ErrAlreadyClosed
	}
	m.Resolved = true
	m.WinningOption = winningOption
	m.ResolvedAt = &at
	return nil
}

func (s *Memory) ZeroStake(_ context.Context, id int64, user string, option int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	if option < 0 || option >= len(m.Options) {
		return 0, ErrOptionRange
	}
	k := betKey{user: user, option: option}
	prev := s.bets[id][k]
	delete(s.bets[id], k)
	return prev, nil
}

func (s *Memory) Ping(context.Context) error { return nil }
