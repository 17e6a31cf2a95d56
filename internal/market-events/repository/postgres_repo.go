package repository

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/radieske/pool-market-poc/pkg/contracts/events"
)

//go:embed schema.sql
var schema string

// PostgresRepo mantém o histórico de eventos de mercado (auditoria/reconciliação)
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// EnsureSchema cria a tabela se ainda não existir
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Append grava o envelope. (partition, offset) é único: reentrega do Kafka não duplica.
func (r *PostgresRepo) Append(ctx context.Context, env events.Envelope, partition int, offset int64) error {
	const q = `
		INSERT INTO market_event_log (market_id, event_type, payload, kafka_partition, kafka_offset)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (kafka_partition, kafka_offset) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, q, env.MarketID, env.Type, []byte(env.Payload), partition, offset)
	return err
}
