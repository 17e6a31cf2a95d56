package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

//go:embed schema.sql
var schema string

// Postgres implementa operações de carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// EnsureSchema aplica o schema embutido (idempotente)
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// lockWallet garante que a carteira existe e trava a linha até o fim da transação
func lockWallet(ctx context.Context, tx *sql.Tx, userID string) (walletID string, balance int64, err error) {
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID); err != nil {
		return "", 0, err
	}
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID, &balance)
	return walletID, balance, err
}

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if walletID, balance, err = lockWallet(ctx, tx, userID); err != nil {
		return "", 0, err
	}
	return walletID, balance, tx.Commit()
}

// credit soma amount ao saldo e registra a linha de ledger
func credit(ctx context.Context, tx *sql.Tx, walletID string, amount int64, op, desc string) (int64, error) {
	var bal int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2 RETURNING balance_cents`,
		amount, walletID).Scan(&bal); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,$2,$3,$4)`,
		walletID, op, amount, desc); err != nil {
		return 0, err
	}
	return bal, nil
}

// Deposit incrementa o saldo da carteira e registra a operação no ledger
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if walletID, _, err = lockWallet(ctx, tx, userID); err != nil {
		return "", 0, err
	}
	if newBalance, err = credit(ctx, tx, walletID, amount, "CREDIT", "deposit:"+externalRef); err != nil {
		return "", 0, err
	}
	return walletID, newBalance, tx.Commit()
}

// Payout credita ganhos de mercado. Idempotente por externalRef
// (payout:{marketId}:{userId}): repetir devolve o saldo sem creditar de novo.
func (p *Postgres) Payout(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if walletID, newBalance, err = lockWallet(ctx, tx, userID); err != nil {
		return "", 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_payouts(external_ref, wallet_id, amount_cents) VALUES($1,$2,$3) ON CONFLICT (external_ref) DO NOTHING`,
		externalRef, walletID, amount)
	if err != nil {
		return "", 0, err
	}
	fresh, err := inserted(res)
	if err != nil {
		return "", 0, fmt.Errorf("payout %s: %w", externalRef, err)
	}
	if !fresh {
		return walletID, newBalance, nil // já pago
	}

	if newBalance, err = credit(ctx, tx, walletID, amount, "PAYOUT", "payout:"+externalRef); err != nil {
		return "", 0, err
	}
	return walletID, newBalance, tx.Commit()
}

// inserted diz se um INSERT ... ON CONFLICT DO NOTHING gravou a linha.
// Erro do driver não pode ser lido como conflito, senão o pagamento some sem crédito.
func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Reserve cria uma reserva PENDING e debita saldo (bloqueio).
// Idempotente por (wallet_id, external_ref).
func (p *Postgres) Reserve(ctx context.Context, userID string, amount int64, externalRef string) (reservationID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var walletID string
	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&exists)
	if err == nil {
		return exists, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	if balance < amount {
		return "", ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_cents = balance_cents - $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
		return "", err
	}

	reservationID = uuid.NewString()
	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount_cents, status) VALUES($1,$2,$3,$4,'PENDING')`,
		reservationID, walletID, externalRef, amount); err != nil {
		return "", err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,'RESERVE',$2,$3)`,
		walletID, amount, "reserve:"+externalRef); err != nil {
		return "", err
	}

	return reservationID, tx.Commit()
}

// settleReservation trava a reserva PENDING e aplica fn; reservas já tratadas são ignoradas
func (p *Postgres) settleReservation(ctx context.Context, userID, externalRef string, fn func(tx *sql.Tx, resID, walletID string, amount int64) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID, resID, status string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount_cents, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.user_id=$1 AND wr.external_ref=$2
		FOR UPDATE`, userID, externalRef).Scan(&resID, &walletID, &amount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if status != "PENDING" {
		return nil // idempotente
	}
	if err := fn(tx, resID, walletID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// Commit efetiva uma reserva (COMMITTED + DEBIT no ledger)
func (p *Postgres) Commit(ctx context.Context, userID, externalRef string) error {
	return p.settleReservation(ctx, userID, externalRef, func(tx *sql.Tx, resID, walletID string, amount int64) error {
		if _, err := tx.ExecContext(ctx, `UPDATE wallet_reservations SET status='COMMITTED' WHERE id=$1`, resID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,'DEBIT',$2,$3)`,
			walletID, amount, "commit:"+externalRef)
		return err
	})
}

// Refund desfaz uma reserva PENDING, devolvendo o saldo
func (p *Postgres) Refund(ctx context.Context, userID, externalRef string) error {
	return p.settleReservation(ctx, userID, externalRef, func(tx *sql.Tx, resID, walletID string, amount int64) error {
		if _, err := tx.ExecContext(ctx, `UPDATE wallet_reservations SET status='REFUNDED' WHERE id=$1`, resID); err != nil {
			return err
		}
		_, err := credit(ctx, tx, walletID, amount, "REFUND", "refund:"+externalRef)
		return err
	})
}
