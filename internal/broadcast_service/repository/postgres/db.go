package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// DBTX is the subset of *pgxpool.Pool the repositories use. pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables and the singleton ledger row when missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func collectIDs(rows pgx.Rows) ([]domain.RecipientID, error) {
	defer rows.Close()
	var ids []domain.RecipientID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient id: %w", err)
		}
		ids = append(ids, domain.RecipientID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipient ids: %w", err)
	}
	return ids, nil
}

func toInt64s(ids []domain.RecipientID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

var (
	_ domain.AccessRepository   = (*PgAccessRepository)(nil)
	_ domain.LedgerRepository   = (*PgLedgerRepository)(nil)
	_ domain.DeliveryRepository = (*PgDeliveryRepository)(nil)
)
