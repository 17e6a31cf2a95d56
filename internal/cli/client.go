package cli

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"resty.dev/v3"

	"github.com/radieske/pool-market-poc/internal/market-service/dto"
)

// APIError é o corpo de erro do market-service com o status HTTP
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client fala com a API HTTP do market-service
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

func (c *Client) Close() error { return c.http.Close() }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var apiErr dto.ErrorResponse
	req := c.http.R().SetContext(ctx).SetResult(out).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	var (
		res *resty.Response
		err error
	)
	if method == http.MethodPost {
		res, err = req.Post(path)
	} else {
		res, err = req.Get(path)
	}
	if err != nil {
		return err
	}
	if res.StatusCode() >= 400 {
		if apiErr.Code == "" {
			apiErr.Code = "HTTP_ERROR"
			apiErr.Error = res.String()
		}
		return &APIError{Status: res.StatusCode(), Code: apiErr.Code, Message: apiErr.Error}
	}
	return nil
}

func marketPath(id int64) string { return "/markets/" + strconv.FormatInt(id, 10) }

func (c *Client) CreateMarket(ctx context.Context, req dto.CreateMarketRequest) (int64, error) {
	var out dto.CreateMarketResponse
	if err := c.do(ctx, http.MethodPost, "/markets", req, &out); err != nil {
		return 0, err
	}
	return out.MarketID, nil
}

func (c *Client) PlaceBet(ctx context.Context, id int64, req dto.PlaceBetRequest) (dto.PlaceBetResponse, error) {
	var out dto.PlaceBetResponse
	err := c.do(ctx, http.MethodPost, marketPath(id)+"/bets", req, &out)
	return out, err
}

func (c *Client) Resolve(ctx context.Context, id int64, req dto.ResolveRequest) (dto.MarketResponse, error) {
	var out dto.MarketResponse
	err := c.do(ctx, http.MethodPost, marketPath(id)+"/resolve", req, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, id int64, user string) (int64, error) {
	var out dto.AmountResponse
	if err := c.do(ctx, http.MethodPost, marketPath(id)+"/withdraw", dto.WithdrawRequest{UserID: user}, &out); err != nil {
		return 0, err
	}
	return out.AmountCents, nil
}

func (c *Client) GetMarket(ctx context.Context, id int64) (dto.MarketResponse, error) {
	var out dto.MarketResponse
	err := c.do(ctx, http.MethodGet, marketPath(id), nil, &out)
	return out, err
}

func (c *Client) OptionPool(ctx context.Context, id int64, option int) (int64, error) {
	var out dto.AmountResponse
	if err := c.do(ctx, http.MethodGet, marketPath(id)+"/pools/"+strconv.Itoa(option), nil, &out); err != nil {
		return 0, err
	}
	return out.AmountCents, nil
}

func (c *Client) UserBet(ctx context.Context, id int64, user string, option int) (int64, error) {
	var out dto.AmountResponse
	if err := c.do(ctx, http.MethodGet, marketPath(id)+"/bets/"+user+"/"+strconv.Itoa(option), nil, &out); err != nil {
		return 0, err
	}
	return out.AmountCents, nil
}

func (c *Client) Claimable(ctx context.Context, id int64, user string) (int64, error) {
	var out dto.AmountResponse
	if err := c.do(ctx, http.MethodGet, marketPath(id)+"/claimable/"+user, nil, &out); err != nil {
		return 0, err
	}
	return out.AmountCents, nil
}

func (c *Client) UserMarkets(ctx context.Context, user string) ([]int64, error) {
	var out dto.UserMarketsResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+user+"/markets", nil, &out); err != nil {
		return nil, err
	}
	return out.MarketIDs, nil
}
