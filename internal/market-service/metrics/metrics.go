package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/pool-market-poc/internal/market-service/engine"
)

// Collectors agrupa as métricas do market-service
type Collectors struct {
	Operations *prometheus.CounterVec
	Staked     prometheus.Counter
	PaidOut    prometheus.Counter
}

// New cria e registra as métricas no registerer informado
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_operations_total",
			Help: "operações do engine por tipo e resultado",
		}, []string{"op", "result"}),
		Staked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_stake_cents_total",
			Help: "valor total apostado (centavos)",
		}),
		PaidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_payout_cents_total",
			Help: "valor total pago aos vencedores (centavos)",
		}),
	}
	reg.MustRegister(c.Operations, c.Staked, c.PaidOut)
	return c
}

// Hooks liga as métricas aos callbacks do engine
func (c *Collectors) Hooks() engine.Hooks {
	return engine.Hooks{
		OnOperation: func(op, code string) { c.Operations.WithLabelValues(op, code).Inc() },
		OnStake:     func(cents int64) { c.Staked.Add(float64(cents)) },
		OnPayout:    func(cents int64) { c.PaidOut.Add(float64(cents)) },
	}
}
