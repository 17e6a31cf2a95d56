package dto

type DepositRequest struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	ExternalRef string `json:"external_ref,omitempty" validate:"max=256"` // opcional p/ idempotência simples
}

type ReserveRequest struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	ExternalRef string `json:"external_ref" validate:"required,max=256"` // ex: bet:{uuid}
}

// SettleRequest é usado por commit e refund
type SettleRequest struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	ExternalRef string `json:"external_ref" validate:"required,max=256"`
}

type PayoutRequest struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	ExternalRef string `json:"external_ref" validate:"required,max=256"` // payout:{marketId}:{userId}
}
