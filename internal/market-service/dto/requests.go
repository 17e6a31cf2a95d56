package dto

// Limites de transporte; as regras de negócio ficam no engine
type CreateMarketRequest struct {
	UserID          string   `json:"userId" validate:"max=128"`
	Question        string   `json:"question" validate:"max=1024"`
	Options         []string `json:"options" validate:"max=64,dive,max=256"`
	DurationSeconds int64    `json:"duration_seconds"`
}

type PlaceBetRequest struct {
	UserID      string `json:"userId" validate:"max=128"`
	Option      int    `json:"option"`
	AmountCents int64  `json:"amount_cents"`
}

type ResolveRequest struct {
	UserID        string `json:"userId" validate:"max=128"`
	WinningOption int    `json:"winning_option"`
}

type WithdrawRequest struct {
	UserID string `json:"userId" validate:"max=128"`
}
