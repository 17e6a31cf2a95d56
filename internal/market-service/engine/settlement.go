package engine

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// Payout calcula floor(stake * totalPool / winningPool) sem overflow.
// O resto da divisão (dust) não é redistribuído e fica retido no pool.
func Payout(stake, totalPool, winningPool int64) int64 {
	if stake <= 0 || winningPool <= 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(stake), big.NewInt(totalPool))
	n.Quo(n, big.NewInt(winningPool))
	return n.Int64()
}

// WithdrawWinnings paga ao chamador sua parte proporcional do pool, uma única vez.
//
// Ordem obrigatória: a reivindicação é zerada no store, o lock é liberado e só então
// o Payer é chamado. Uma chamada reentrante vinda do Payer encontra stake zero e
// falha com ErrNoWinningStake. Se o pagamento falhar a reivindicação continua zerada.
func (e *Engine) WithdrawWinnings(ctx context.Context, caller string, marketID int64) (paid int64, err error) {
	defer func() { e.observe("withdraw", err) }()

	if caller == "" {
		return 0, ErrUnauthorized
	}

	err = e.withMarketLock(ctx, marketID, func() error {
		m, err := e.store.Get(ctx, marketID)
		if err != nil {
			return err
		}
		if !m.Resolved {
			return ErrNotResolved
		}
		stake, err := e.store.UserBet(ctx, marketID, caller, m.WinningOption)
		if err != nil {
			return fmt.Errorf("read stake: %w", err)
		}
		if stake == 0 {
			return ErrNoWinningStake
		}
		winningPool := m.OptionPools[m.WinningOption]
		if winningPool == 0 {
			return ErrNoWinnersPool
		}

		// o valor pago é o que o store zerou atomicamente, não a leitura acima:
		// outra réplica com lock próprio pode ter zerado a mesma aposta no meio
		taken, err := e.store.ZeroStake(ctx, marketID, caller, m.WinningOption)
		if err != nil {
			return fmt.Errorf("zero stake: %w", err)
		}
		if taken == 0 {
			return ErrNoWinningStake
		}
		paid = Payout(taken, m.TotalPool, winningPool)
		return nil
	})
	if err != nil {
		return 0, err
	}

	ref := fmt.Sprintf("payout:%d:%s", marketID, caller)
	if err := e.payer.Payout(ctx, caller, paid, ref); err != nil {
		e.log.Error("payout transfer failed; claim already zeroed",
			zap.Int64("market_id", marketID),
			zap.String("user_id", caller),
			zap.Int64("amount_cents", paid),
			zap.String("external_ref", ref),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	if e.hooks.OnPayout != nil {
		e.hooks.OnPayout(paid)
	}
	e.log.Info("winnings withdrawn",
		zap.Int64("market_id", marketID),
		zap.String("user_id", caller),
		zap.Int64("amount_cents", paid),
	)
	e.notify("withdraw", marketID, func(ctx context.Context) error {
		return e.notifier.PublishWinningsWithdrawn(ctx, events.WinningsWithdrawn{
			MarketID:    marketID,
			UserID:      caller,
			AmountCents: paid,
			TsUnixMs:    e.clock.Now().UnixMilli(),
		})
	})
	return paid, nil
}

// Claimable mostra quanto WithdrawWinnings pagaria agora, sem alterar estado.
// Retorna 0 para mercado não resolvido ou reivindicação já paga.
func (e *Engine) Claimable(ctx context.Context, marketID int64, user string) (int64, error) {
	m, err := e.store.Get(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if !m.Resolved {
		return 0, nil
	}
	stake, err := e.store.UserBet(ctx, marketID, user, m.WinningOption)
	if err != nil {
		return 0, err
	}
	return Payout(stake, m.TotalPool, m.OptionPools[m.WinningOption]), nil
}
