package dto

import "time"

type CreateMarketResponse struct {
	MarketID int64 `json:"marketId"`
}

type MarketResponse struct {
	MarketID      int64      `json:"marketId"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	Creator       string     `json:"creator"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"` // OPEN | ENDED | RESOLVED
	Resolved      bool       `json:"resolved"`
	WinningOption *int       `json:"winning_option,omitempty"`
	TotalPool     int64      `json:"total_pool_cents"`
	OptionPools   []int64    `json:"option_pools_cents"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

type PlaceBetResponse struct {
	MarketID    int64  `json:"marketId"`
	Option      int    `json:"option"`
	AmountCents int64  `json:"amount_cents"`
	FundingRef  string `json:"funding_ref,omitempty"`
	Status      string `json:"status"` // ACCEPTED
}

type AmountResponse struct {
	MarketID    int64  `json:"marketId"`
	UserID      string `json:"userId,omitempty"`
	Option      *int   `json:"option,omitempty"`
	AmountCents int64  `json:"amount_cents"`
}

type UserMarketsResponse struct {
	UserID    string  `json:"userId"`
	MarketIDs []int64 `json:"marketIds"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
