package events

// Evento emitido pelo market-service quando uma aposta é registrada no pool.
type BetPlaced struct {
	MarketID    int64  `json:"market_id"`
	UserID      string `json:"user_id"`
	OptionIndex int    `json:"option_index"`
	AmountCents int64  `json:"amount_cents"`
	TotalPool   int64  `json:"total_pool_cents"`
	OptionPool  int64  `json:"option_pool_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
