package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/pool-market-poc/internal/wallet-service/dto"
	"github.com/radieske/pool-market-poc/internal/wallet-service/repo"
)

// memRepo imita as regras do repo Postgres: saldo, reservas e payouts idempotentes
type memRepo struct {
	balances     map[string]int64
	reservations map[string]int64 // ref -> amount (PENDING)
	payouts      map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{balances: map[string]int64{}, reservations: map[string]int64{}, payouts: map[string]bool{}}
}

func (m *memRepo) GetOrCreateWallet(_ context.Context, userID string) (string, int64, error) {
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Deposit(_ context.Context, userID string, amount int64, _ string) (string, int64, error) {
	m.balances[userID] += amount
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Payout(_ context.Context, userID string, amount int64, ref string) (string, int64, error) {
	if !m.payouts[ref] {
		m.payouts[ref] = true
		m.balances[userID] += amount
	}
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Reserve(_ context.Context, userID string, amount int64, ref string) (string, error) {
	if _, ok := m.balances[userID]; !ok {
		return "", repo.ErrNotFound
	}
	if m.balances[userID] < amount {
		return "", repo.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	m.reservations[userID+"|"+ref] = amount
	return "r-" + ref, nil
}

func (m *memRepo) Commit(_ context.Context, userID, ref string) error {
	if _, ok := m.reservations[userID+"|"+ref]; !ok {
		return repo.ErrNotFound
	}
	delete(m.reservations, userID+"|"+ref)
	return nil
}

func (m *memRepo) Refund(_ context.Context, userID, ref string) error {
	amount, ok := m.reservations[userID+"|"+ref]
	if !ok {
		return repo.ErrNotFound
	}
	delete(m.reservations, userID+"|"+ref)
	m.balances[userID] += amount
	return nil
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b)))
	return rec
}

func TestReserveRefundAndPayout(t *testing.T) {
	r := newMemRepo()
	h := NewServer(zaptest.NewLogger(t), r).Router()

	rec := post(t, h, "/wallet/deposit", dto.DepositRequest{UserID: "alice", AmountCents: 500})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, h, "/wallet/reserve", dto.ReserveRequest{UserID: "alice", AmountCents: 200, ExternalRef: "bet:1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(300), r.balances["alice"])

	rec = post(t, h, "/wallet/refund", dto.SettleRequest{UserID: "alice", ExternalRef: "bet:1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), r.balances["alice"])

	for i := 0; i < 2; i++ {
		rec = post(t, h, "/wallet/payout", dto.PayoutRequest{UserID: "alice", AmountCents: 150, ExternalRef: "payout:0:alice"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	var out dto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(650), out.BalanceCents)
}

func TestWalletErrors(t *testing.T) {
	r := newMemRepo()
	r.balances["bob"] = 10
	h := NewServer(zaptest.NewLogger(t), r).Router()

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"insufficient funds", "/wallet/reserve", dto.ReserveRequest{UserID: "bob", AmountCents: 50, ExternalRef: "bet:x"}, http.StatusConflict},
		{"unknown wallet", "/wallet/reserve", dto.ReserveRequest{UserID: "ghost", AmountCents: 1, ExternalRef: "bet:y"}, http.StatusNotFound},
		{"unknown reservation", "/wallet/commit", dto.SettleRequest{UserID: "bob", ExternalRef: "bet:z"}, http.StatusNotFound},
		{"payout without ref", "/wallet/payout", dto.PayoutRequest{UserID: "bob", AmountCents: 5}, http.StatusBadRequest},
		{"negative deposit", "/wallet/deposit", dto.DepositRequest{UserID: "bob", AmountCents: -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, int64(10), r.balances["bob"])
}
