package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/market-service/repo"
	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// PlaceBet registra amountCents do chamador na opção. Apostas repetidas na mesma
// opção acumulam. Aceita apenas enquanto now < endTime e o mercado não foi resolvido.
func (e *Engine) PlaceBet(ctx context.Context, caller string, marketID int64, option int, amountCents int64) (err error) {
	defer func() { e.observe("bet", err) }()

	if caller == "" {
		return ErrUnauthorized
	}

	var after *repo.Market
	err = e.withMarketLock(ctx, marketID, func() error {
		m, err := e.store.Get(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Resolved || !e.clock.Now().Before(m.EndTime) {
			return ErrMarketClosed
		}
		if option < 0 || option >= len(m.Options) {
			return fmt.Errorf("%w: %d of %d", ErrInvalidOption, option, len(m.Options))
		}
		if amountCents <= 0 {
			return ErrZeroAmount
		}
		if amountCents > math.MaxInt64-m.TotalPool {
			return ErrAmountTooLarge
		}
		if err := e.store.AddStake(ctx, marketID, caller, option, amountCents); err != nil {
			if errors.Is(err, repo.ErrPoolOverflow) {
				return ErrAmountTooLarge
			}
			return fmt.Errorf("add stake: %w", err)
		}
		m.TotalPool += amountCents
		m.OptionPools[option] += amountCents
		after = m
		return nil
	})
	if err != nil {
		return err
	}

	if e.hooks.OnStake != nil {
		e.hooks.OnStake(amountCents)
	}
	e.log.Info("bet placed",
		zap.Int64("market_id", marketID),
		zap.String("user_id", caller),
		zap.Int("option", option),
		zap.Int64("amount_cents", amountCents),
		zap.Int64("total_pool", after.TotalPool),
	)
	e.notify("bet", marketID, func(ctx context.Context) error {
		return e.notifier.PublishBetPlaced(ctx, events.BetPlaced{
			MarketID:    marketID,
			UserID:      caller,
			OptionIndex: option,
			AmountCents: amountCents,
			TotalPool:   after.TotalPool,
			OptionPool:  after.OptionPools[option],
			TsUnixMs:    e.clock.Now().UnixMilli(),
		})
	})
	return nil
}

// GetUserBet retorna a aposta acumulada do usuário na opção
func (e *Engine) GetUserBet(ctx context.Context, marketID int64, user string, option int) (int64, error) {
	amount, err := e.store.UserBet(ctx, marketID, user, option)
	if errors.Is(err, repo.ErrOptionRange) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}
	return amount, err
}

// GetOptionPool retorna o total apostado na opção
func (e *Engine) GetOptionPool(ctx context.Context, marketID int64, option int) (int64, error) {
	m, err := e.store.Get(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if option < 0 || option >= len(m.OptionPools) {
		return 0, fmt.Errorf("%w: %d of %d", ErrInvalidOption, option, len(m.Options))
	}
	return m.OptionPools[option], nil
}
