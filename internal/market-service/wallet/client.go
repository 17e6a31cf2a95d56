package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/radieske/pool-market-poc/internal/market-service/engine"
	walletdto "github.com/radieske/pool-market-poc/internal/market-service/wallet/dto"
)

// Client fala com o wallet-service: financia apostas (reserve/commit/refund)
// e paga ganhos (payout), implementando engine.Payer.
type Client struct {
	http *resty.Client
}

func New(base string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(2 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

func (c *Client) Close() error { return c.http.Close() }

var _ engine.Payer = (*Client)(nil)

// StatusError carrega o status HTTP devolvido pelo wallet-service
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wallet %s http %d: %s", e.Op, e.Status, e.Body)
}

func (c *Client) Reserve(ctx context.Context, userID string, cents int64, externalRef string) (string, error) {
	var out walletdto.ReserveResponse
	err := c.post(ctx, "reserve", walletdto.ReserveRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef}, &out)
	if err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

func (c *Client) Commit(ctx context.Context, userID, externalRef string) error {
	return c.post(ctx, "commit", walletdto.SettleRequest{UserID: userID, ExternalRef: externalRef}, nil)
}

func (c *Client) Refund(ctx context.Context, userID, externalRef string) error {
	return c.post(ctx, "refund", walletdto.SettleRequest{UserID: userID, ExternalRef: externalRef}, nil)
}

// Payout credita os ganhos; repetir com o mesmo externalRef não paga duas vezes
func (c *Client) Payout(ctx context.Context, userID string, cents int64, externalRef string) error {
	return c.post(ctx, "payout", walletdto.PayoutRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef}, nil)
}

func (c *Client) post(ctx context.Context, op string, in, out any) error {
	res, err := c.http.R().SetContext(ctx).SetBody(in).Post("/wallet/" + op)
	if err != nil {
		return fmt.Errorf("wallet %s: %w", op, err)
	}
	if res.StatusCode() >= 300 {
		body := res.String()
		if len(body) > 512 {
			body = body[:512]
		}
		return &StatusError{Op: op, Status: res.StatusCode(), Body: strings.TrimSpace(body)}
	}
	if out == nil {
		return nil
	}
	// decodifica direto: o wallet-service nem sempre manda Content-Type JSON
	if err := json.Unmarshal([]byte(res.String()), out); err != nil {
		return fmt.Errorf("wallet %s: decode: %w", op, err)
	}
	return nil
}
