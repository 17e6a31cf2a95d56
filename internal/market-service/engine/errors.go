package engine

import (
	"errors"

	"github.com/radieske/pool-market-poc/internal/market-service/repo"
)

// Erros de validação devolvidos ao chamador. Nenhum deles é re-tentado internamente
// e nenhum deixa estado parcial: toda checagem acontece antes da primeira escrita.
var (
	ErrNotFound        = repo.ErrNotFound
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidOptions  = errors.New("invalid options")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidOption   = errors.New("invalid option")
	ErrZeroAmount      = errors.New("amount must be positive")
	ErrAmountTooLarge  = errors.New("amount overflows pool")
	ErrMarketClosed    = errors.New("market closed")
	ErrMarketNotEnded  = errors.New("market not ended")
	ErrAlreadyResolved = errors.New("market already resolved")
	ErrNotResolved     = errors.New("market not resolved")
	ErrNoWinningStake  = errors.New("no winning stake")
	ErrNoWinnersPool   = errors.New("no winners pool")

	// ErrTransferFailed indica que o pagamento externo falhou depois da
	// reivindicação já ter sido zerada; o valor fica para reconciliação manual.
	ErrTransferFailed = errors.New("payout transfer failed")
	ErrLockTimeout    = errors.New("market lock timeout")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrInvalidQuestion, "INVALID_QUESTION"},
	{ErrInvalidOptions, "INVALID_OPTIONS"},
	{ErrInvalidDuration, "INVALID_DURATION"},
	{ErrInvalidOption, "INVALID_OPTION"},
	{ErrZeroAmount, "ZERO_AMOUNT"},
	{ErrAmountTooLarge, "AMOUNT_TOO_LARGE"},
	{ErrMarketClosed, "MARKET_CLOSED"},
	{ErrMarketNotEnded, "MARKET_NOT_ENDED"},
	{ErrAlreadyResolved, "ALREADY_RESOLVED"},
	{ErrNotResolved, "NOT_RESOLVED"},
	{ErrNoWinningStake, "NO_WINNING_STAKE"},
	{ErrNoWinnersPool, "NO_WINNERS_POOL"},
	{ErrTransferFailed, "TRANSFER_FAILED"},
	{ErrLockTimeout, "LOCK_TIMEOUT"},
}

// Code converte um erro do engine em um código estável (usado em respostas HTTP e métricas).
// nil vira "OK"; erros desconhecidos (infra) viram "INTERNAL".
func Code(err error) string {
	if err == nil {
		return "OK"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
