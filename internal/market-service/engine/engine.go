package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pool-market-poc/internal/market-service/repo"
	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

// Payer é a primitiva externa que move valor para o participante (ex.: wallet-service).
// Pode chamar de volta o engine; por isso o pagamento acontece fora do lock do mercado.
type Payer interface {
	Payout(ctx context.Context, userID string, amountCents int64, externalRef string) error
}

// Notifier publica as notificações do ciclo de vida do mercado (fire-and-forget)
type Notifier interface {
	PublishMarketCreated(context.Context, events.MarketCreated) error
	PublishBetPlaced(context.Context, events.BetPlaced) error
	PublishMarketResolved(context.Context, events.MarketResolved) error
	PublishWinningsWithdrawn(context.Context, events.WinningsWithdrawn) error
}

// Hooks permite ligar métricas sem acoplar o engine ao Prometheus
type Hooks struct {
	OnOperation func(op, code string) // op: create|bet|resolve|withdraw
	OnStake     func(cents int64)
	OnPayout    func(cents int64)
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLocker(l Locker) Option { return func(e *Engine) { e.locks = l } }

// WithLockWait limita quanto tempo uma operação espera pelo lock do mercado
func WithLockWait(d time.Duration) Option { return func(e *Engine) { e.lockWait = d } }

func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

// Engine reúne MarketLifecycle, WageringLedger e SettlementEngine sobre um Store.
type Engine struct {
	log      *zap.Logger
	store    repo.Store
	payer    Payer
	notifier Notifier
	clock    Clock
	locks    Locker
	lockWait time.Duration
	hooks    Hooks
}

// New monta o engine; clock, locker e espera do lock têm defaults em processo
func New(log *zap.Logger, store repo.Store, payer Payer, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		log:      log,
		store:    store,
		payer:    payer,
		notifier: notifier,
		clock:    SystemClock{},
		locks:    NewKeyedMutex(),
		lockWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.payer == nil {
		e.payer = NopPayer{}
	}
	return e
}

// withMarketLock executa fn com o mercado travado; o lock é sempre liberado ao retornar
func (e *Engine) withMarketLock(ctx context.Context, marketID int64, fn func() error) error {
	lctx, cancel := context.WithTimeout(ctx, e.lockWait)
	defer cancel()
	unlock, err := e.locks.Lock(lctx, marketID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// notify roda a publicação com um contexto próprio: falha de notificação não desfaz a operação
func (e *Engine) notify(op string, marketID int64, publish func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := publish(ctx); err != nil {
		e.log.Warn("notification publish failed",
			zap.String("op", op), zap.Int64("market_id", marketID), zap.Error(err))
	}
}

func (e *Engine) observe(op string, err error) {
	if e.hooks.OnOperation != nil {
		e.hooks.OnOperation(op, Code(err))
	}
}

// NopPayer aceita qualquer pagamento sem mover valor (modo sem wallet)
type NopPayer struct{}

func (NopPayer) Payout(context.Context, string, int64, string) error { return nil }

// NopNotifier descarta as notificações (usado quando o Kafka está desligado)
type NopNotifier struct{}

func (NopNotifier) PublishMarketCreated(context.Context, events.MarketCreated) error   { return nil }
func (NopNotifier) PublishBetPlaced(context.Context, events.BetPlaced) error           { return nil }
func (NopNotifier) PublishMarketResolved(context.Context, events.MarketResolved) error { return nil }
func (NopNotifier) PublishWinningsWithdrawn(context.Context, events.WinningsWithdrawn) error {
	return nil
}
