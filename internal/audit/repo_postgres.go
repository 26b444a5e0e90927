package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to the webhook_deliveries table. Insert-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, d Delivery) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (id, call_id, dialect, kind, remote_ip, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.CallID, d.Dialect, d.Kind, d.RemoteIP, d.ReceivedAt)
	return err
}
