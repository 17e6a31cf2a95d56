package dto

// ReserveRequest representa o payload para reservar saldo no wallet-service.
type ReserveRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}

// SettleRequest serve tanto para commit quanto para refund de uma reserva.
type SettleRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"`
}

// PayoutRequest credita ganhos de um mercado; external_ref garante idempotência.
type PayoutRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}
