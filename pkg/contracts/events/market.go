package events

import (
	"encoding/json"
	"fmt"
)

// Tipos de evento transportados no tópico market_events
const (
	TypeMarketCreated     = "market_created"
	TypeBetPlaced         = "bet_placed"
	TypeMarketResolved    = "market_resolved"
	TypeWinningsWithdrawn = "winnings_withdrawn"
)

// MarketCreated é emitido quando um mercado é aberto.
type MarketCreated struct {
	MarketID  int64    `json:"market_id"`
	Creator   string   `json:"creator"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	EndTimeMs int64    `json:"end_time_ms"`
	TsUnixMs  int64    `json:"ts_unix_ms"`
}

// MarketResolved carrega a opção vencedora e o pool final (congelado).
type MarketResolved struct {
	MarketID      int64 `json:"market_id"`
	WinningOption int   `json:"winning_option"`
	TotalPool     int64 `json:"total_pool_cents"`
	WinningPool   int64 `json:"winning_pool_cents"`
	TsUnixMs      int64 `json:"ts_unix_ms"`
}

// WinningsWithdrawn registra o valor efetivamente pago a um participante.
type WinningsWithdrawn struct {
	MarketID    int64  `json:"market_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// Envelope é o formato único publicado no Kafka e repassado ao WebSocket
type Envelope struct {
	Type     string          `json:"type"`
	MarketID int64           `json:"market_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Wrap serializa o payload dentro de um Envelope
func Wrap(typ string, marketID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, MarketID: marketID, Payload: b}, nil
}
