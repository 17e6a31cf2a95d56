package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/market-service/repo"
	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// maxDurationSeconds evita overflow de time.Duration (~100 anos)
const maxDurationSeconds = 100 * 365 * 24 * 60 * 60

// Status é derivado do relógio: ENDED não é gravado, só calculado
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusEnded    Status = "ENDED"
	StatusResolved Status = "RESOLVED"
)

// StatusAt calcula o estado do mercado no instante now
func StatusAt(m *repo.Market, now time.Time) Status {
	switch {
	case m.Resolved:
		return StatusResolved
	case now.Before(m.EndTime):
		return StatusOpen
	default:
		return StatusEnded
	}
}

// Now expõe o relógio do engine (read models calculam o Status com ele)
func (e *Engine) Now() time.Time { return e.clock.Now() }

// CreateMarket abre um mercado com endTime = agora + durationSeconds.
// O chamador vira o criador e o único autorizado a resolvê-lo.
func (e *Engine) CreateMarket(ctx context.Context, caller, question string, options []string, durationSeconds int64) (id int64, err error) {
	defer func() { e.observe("create", err) }()

	if caller == "" {
		return 0, ErrUnauthorized
	}
	if question == "" {
		return 0, ErrInvalidQuestion
	}
	if err := validateOptions(options); err != nil {
		return 0, err
	}
	if durationSeconds <= 0 || durationSeconds > maxDurationSeconds {
		return 0, fmt.Errorf("%w: %d seconds", ErrInvalidDuration, durationSeconds)
	}

	now := e.clock.Now()
	m := &repo.Market{
		Question:    question,
		Options:     append([]string(nil), options...),
		EndTime:     now.Add(time.Duration(durationSeconds) * time.Second),
		Creator:     caller,
		OptionPools: make([]int64, len(options)),
		CreatedAt:   now,
	}
	id, err = e.store.Create(ctx, m)
	if err != nil {
		return 0, fmt.Errorf("create market: %w", err)
	}

	e.log.Info("market created",
		zap.Int64("market_id", id),
		zap.String("creator", caller),
		zap.Int("options", len(options)),
		zap.Time("end_time", m.EndTime),
	)
	e.notify("create", id, func(ctx context.Context) error {
		return e.notifier.PublishMarketCreated(ctx, events.MarketCreated{
			MarketID:  id,
			Creator:   caller,
			Question:  question,
			Options:   m.Options,
			EndTimeMs: m.EndTime.UnixMilli(),
			TsUnixMs:  now.UnixMilli(),
		})
	})
	return id, nil
}

// validateOptions exige ao menos duas opções, não vazias e distintas
func validateOptions(options []string) error {
	if len(options) < 2 {
		return fmt.Errorf("%w: need at least 2, got %d", ErrInvalidOptions, len(options))
	}
	seen := make(map[string]struct{}, len(options))
	for i, o := range options {
		if o == "" {
			return fmt.Errorf("%w: option %d is empty", ErrInvalidOptions, i)
		}
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidOptions, o)
		}
		seen[o] = struct{}{}
	}
	return nil
}

// ResolveMarket fixa a opção vencedora. Transição única e irreversível:
// só o criador, só depois do endTime, só uma vez.
func (e *Engine) ResolveMarket(ctx context.Context, caller string, marketID int64, winningOption int) (err error) {
	defer func() { e.observe("resolve", err) }()

	var resolved *repo.Market
	err = e.withMarketLock(ctx, marketID, func() error {
		m, err := e.store.Get(ctx, marketID)
		if err != nil {
			return err
		}
		if caller == "" || caller != m.Creator {
			return ErrUnauthorized
		}
		if m.Resolved {
			return ErrAlreadyResolved
		}
		now := e.clock.Now()
		if now.Before(m.EndTime) {
			return ErrMarketNotEnded
		}
		if winningOption < 0 || winningOption >= len(m.Options) {
			return fmt.Errorf("%w: %d of %d", ErrInvalidOption, winningOption, len(m.Options))
		}
		if err := e.store.MarkResolved(ctx, marketID, winningOption, now); err != nil {
			return fmt.Errorf("mark resolved: %w", err)
		}
		m.Resolved = true
		m.WinningOption = winningOption
		m.ResolvedAt = &now
		resolved = m
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info("market resolved",
		zap.Int64("market_id", marketID),
		zap.Int("winning_option", winningOption),
		zap.Int64("total_pool", resolved.TotalPool),
		zap.Int64("winning_pool", resolved.OptionPools[winningOption]),
	)
	e.notify("resolve", marketID, func(ctx context.Context) error {
		return e.notifier.PublishMarketResolved(ctx, events.MarketResolved{
			MarketID:      marketID,
			WinningOption: winningOption,
			TotalPool:     resolved.TotalPool,
			WinningPool:   resolved.OptionPools[winningOption],
			TsUnixMs:      resolved.ResolvedAt.UnixMilli(),
		})
	})
	return nil
}

// GetMarket retorna uma cópia do mercado
func (e *Engine) GetMarket(ctx context.Context, marketID int64) (*repo.Market, error) {
	return e.store.Get(ctx, marketID)
}

// GetUserMarkets lista os ids criados pela identidade (vazio se nenhum)
func (e *Engine) GetUserMarkets(ctx context.Context, user string) ([]int64, error) {
	return e.store.UserMarkets(ctx, user)
}
