package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type     string `json:"type"`
	MarketID int64  `json:"marketId"` // requerido em subscribe/unsubscribe
}

// ServerMsg é o que o hub escreve para o cliente fora dos envelopes de evento
type ServerMsg struct {
	Type     string `json:"type"` // pong | subscribed | unsubscribed | error
	MarketID *int64 `json:"marketId,omitempty"`
	Error    string `json:"error,omitempty"`
}
