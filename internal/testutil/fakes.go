package testutil

import (
	"context"
	"sync"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// Transfer é um pagamento registrado pelo FakePayer
type Transfer struct {
	UserID      string
	AmountCents int64
	ExternalRef string
}

// FakePayer registra pagamentos. Err força falha; Hook roda antes do registro
// (usado para simular reentrância).
type FakePayer struct {
	mu        sync.Mutex
	Transfers []Transfer
	Err       error
	Hook      func(ctx context.Context, userID string)
}

func (p *FakePayer) Payout(ctx context.Context, userID string, amountCents int64, ref string) error {
	if p.Hook != nil {
		p.Hook(ctx, userID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Transfers = append(p.Transfers, Transfer{UserID: userID, AmountCents: amountCents, ExternalRef: ref})
	return nil
}

// Total soma o valor pago a um usuário
func (p *FakePayer) Total(userID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sum int64
	for _, t := range p.Transfers {
		if t.UserID == userID {
			sum += t.AmountCents
		}
	}
	return sum
}

// RecordingNotifier guarda todas as notificações publicadas
type RecordingNotifier struct {
	mu        sync.Mutex
	Created   []events.MarketCreated
	Bets      []events.BetPlaced
	Resolved  []events.MarketResolved
	Withdrawn []events.WinningsWithdrawn
	Err       error
}

func (n *RecordingNotifier) PublishMarketCreated(_ context.Context, e events.MarketCreated) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Created = append(n.Created, e)
	return n.Err
}

func (n *RecordingNotifier) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Bets = append(n.Bets, e)
	return n.Err
}

func (n *RecordingNotifier) PublishMarketResolved(_ context.Context, e events.MarketResolved) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Resolved = append(n.Resolved, e)
	return n.Err
}

func (n *RecordingNotifier) PublishWinningsWithdrawn(_ context.Context, e events.WinningsWithdrawn) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Withdrawn = append(n.Withdrawn, e)
	return n.Err
}
