package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables and the singleton ledger row when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

var (
	_ domain.AccessRepository   = (*AccessRepository)(nil)
	_ domain.LedgerRepository   = (*LedgerRepository)(nil)
	_ domain.DeliveryRepository = (*DeliveryRepository)(nil)
)
