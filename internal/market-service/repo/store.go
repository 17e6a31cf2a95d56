package repo

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("market not found")
	ErrOptionRange   = errors.New("option index out of range")
	ErrPoolOverflow  = errors.New("pool overflow")
	ErrAlreadyClosed = errors.New("market already resolved")
)

// Store define o acesso aos mercados e às apostas por usuário.
// Não aplica regras de negócio: quem valida pré-condições é o engine,
// sob o lock do mercado. Cada mutação é atômica por si só.
type Store interface {
	// Create aloca um novo id (0, 1, 2, ...) e registra o mercado no índice do criador
	Create(ctx context.Context, m *Market) (int64, error)
	// Get retorna uma cópia do mercado; ErrNotFound se o id nunca foi alocado
	Get(ctx context.Context, id int64) (*Market, error)
	UserBet(ctx context.Context, id int64, user string, option int) (int64, error)
	UserMarkets(ctx context.Context, user string) ([]int64, error)

	// AddStake incrementa userBets, optionPools[option] e totalPool pelo mesmo valor
	AddStake(ctx context.Context, id int64, user string, option int, amount int64) error
	// MarkResolved fixa a opção vencedora e congela os pools
	MarkResolved(ctx context.Context, id int64, winningOption int, at time.Time) error
	// ZeroStake zera a aposta do usuário na opção e retorna o valor anterior
	ZeroStake(ctx context.Context, id int64, user string, option int) (int64, error)

	Ping(ctx context.Context) error
}
