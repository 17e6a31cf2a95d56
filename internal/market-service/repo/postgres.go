package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implementa o Store sobre as tabelas markets, market_options e market_bets
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do store de mercados
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var _ Store = (*Postgres)(nil)

// EnsureSchema cria sequence e tabelas caso não existam (idempotente)
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply market schema: %w", err)
	}
	return nil
}

// Create aloca o id pela sequence e grava mercado + opções na mesma transação
func (p *Postgres) Create(ctx context.Context, m *Market) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	if err = tx.QueryRowContext(ctx, `SELECT nextval('market_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate market id: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO markets (id, question, end_time, creator, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		id, m.Question, m.EndTime, m.Creator, m.CreatedAt,
	); err != nil {
		return 0, fmt.Errorf("insert market: %w", err)
	}

	for i, label := range m.Options {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO market_options (market_id, option_idx, label) VALUES ($1,$2,$3)`,
			id, i, label,
		); err != nil {
			return 0, fmt.Errorf("insert option %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Get lê mercado e opções no mesmo snapshot (REPEATABLE READ), para que
// totalPool sempre bata com a soma dos optionPools mesmo com apostas concorrentes.
func (p *Postgres) Get(ctx context.Context, id int64) (*Market, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m := &Market{ID: id}
	var resolvedAt pq.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT question, end_time, resolved, winning_option, creator, total_pool, created_at, resolved_at
		FROM markets WHERE id=$1`, id,
	).Scan(&m.Question, &m.EndTime, &m.Resolved, &m.WinningOption, &m.Creator, &m.TotalPool, &m.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		m.ResolvedAt = &t
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT label, pool FROM market_options WHERE market_id=$1 ORDER BY option_idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var pool int64
		if err := rows.Scan(&label, &pool); err != nil {
			return nil, err
		}
		m.Options = append(m.Options, label)
		m.OptionPools = append(m.OptionPools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return m, tx.Commit()
}

// optionCount trava a linha do mercado (FOR UPDATE) e retorna o número de opções
func optionCount(ctx context.Context, tx *sql.Tx, id int64) (n int, resolved bool, total int64, err error) {
	err = tx.QueryRowContext(ctx, `
		SELECT m.resolved, m.total_pool,
		       (SELECT COUNT(*) FROM market_options o WHERE o.market_id = m.id)
		FROM markets m WHERE m.id=$1 FOR UPDATE`, id,
	).Scan(&resolved, &total, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, 0, ErrNotFound
	}
	return n, resolved, total, err
}

func (p *Postgres) UserBet(ctx context.Context, id int64, user string, option int) (int64, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM market_options WHERE market_id=$1`, id).Scan(&n)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	if option < 0 || option >= n {
		return 0, ErrOptionRange
	}

	var amount int64
	err = p.db.QueryRowContext(ctx, `
		SELECT amount FROM market_bets WHERE market_id=$1 AND user_id=$2 AND option_idx=$3`,
		id, user, option,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (p *Postgres) UserMarkets(ctx context.Context, user string) ([]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM markets WHERE creator=$1 ORDER BY id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddStake atualiza aposta do usuário, pool da opção e pool total numa única transação
func (p *Postgres) AddStake(ctx context.Context, id int64, user string, option int, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n, resolved, total, err := optionCount(ctx, tx, id)
	if err != nil {
		return err
	}
	if option < 0 || option >= n {
		return ErrOptionRange
	}
	if resolved {
		return ErrAlreadyClosed
	}
	if amount > math.MaxInt64-total {
		return ErrPoolOverflow
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO market_bets (market_id, user_id, option_idx, amount)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (market_id, user_id, option_idx) DO UPDATE SET
		  amount     = market_bets.amount + EXCLUDED.amount,
		  updated_at = NOW()`,
		id, user, option, amount,
	); err != nil {
		return fmt.Errorf("upsert bet: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE market_options SET pool = pool + $1 WHERE market_id=$2 AND option_idx=$3`,
		amount, id, option,
	); err != nil {
		return fmt.Errorf("update option pool: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE markets SET total_pool = total_pool + $1 WHERE id=$2`, amount, id,
	); err != nil {
		return fmt.Errorf("update total pool: %w", err)
	}
	return tx.Commit()
}

func (p *Postgres) MarkResolved(ctx context.Context, id int64, winningOption int, at time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n, resolved, _, err := optionCount(ctx, tx, id)
	if err != nil {
		return err
	}
	if winningOption < 0 || winningOption >= n {
		return ErrOptionRange
	}
	if resolved {
		return ErrAlreadyClosed
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE markets SET resolved=TRUE, winning_option=$1, resolved_at=$2 WHERE id=$3`,
		winningOption, at, id,
	); err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}
	return tx.Commit()
}

// ZeroStake zera a aposta e devolve o valor anterior; a linha fica travada até o commit
func (p *Postgres) ZeroStake(ctx context.Context, id int64, user string, option int) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n, _, _, err := optionCount(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if option < 0 || option >= n {
		return 0, ErrOptionRange
	}

	var prev int64
	err = tx.QueryRowContext(ctx, `
		SELECT amount FROM market_bets
		WHERE market_id=$1 AND user_id=$2 AND option_idx=$3 FOR UPDATE`,
		id, user, option,
	).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE market_bets SET amount=0, updated_at=NOW()
		WHERE market_id=$1 AND user_id=$2 AND option_idx=$3`,
		id, user, option,
	); err != nil {
		return 0, fmt.Errorf("zero stake: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return prev, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
