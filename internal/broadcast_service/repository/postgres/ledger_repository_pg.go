package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

const (
	queryLedgerCurrent = `SELECT current_post_id FROM post_ledger WHERE id = 1`
	// The row lock on the singleton serialises concurrent allocations.
	queryLedgerNext    = `UPDATE post_ledger SET current_post_id = current_post_id + 1 WHERE id = 1 RETURNING current_post_id`
	queryLedgerReset   = `UPDATE post_ledger SET current_post_id = 0 WHERE id = 1`
	queryLedgerSetText = `UPDATE post_ledger SET pending_text = $1 WHERE id = 1`
	queryLedgerGetText = `SELECT pending_text FROM post_ledger WHERE id = 1`

	queryClearRecipients = `DELETE FROM post_recipients WHERE post_id = $1`
	queryClearDeliveries = `DELETE FROM deliveries WHERE post_id = $1`
	querySeedRecipients  = `INSERT INTO post_recipients (post_id, recipient_id)
		SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`
	querySeedDeliveries = `INSERT INTO deliveries (post_id, recipient_id, retrieval_count)
		SELECT $1, unnest($2::bigint[]), 0 ON CONFLICT DO NOTHING`
)

type PgLedgerRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgLedgerRepository(db DBTX, logger *slog.Logger) *PgLedgerRepository {
	return &PgLedgerRepository{db: db, logger: logger.With("component", "ledger_repository_pg")}
}

func (r *PgLedgerRepository) CurrentPostID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, queryLedgerCurrent).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read current post id: %w", err)
	}
	return id, nil
}

// OpenPost allocates the next id, drops rows an earlier post with the same id left behind and
// seeds the audience in one transaction. Readers never see the new id before its rows.
func (r *PgLedgerRepository) OpenPost(ctx context.Context, audience []domain.RecipientID) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("open post: begin: %w", err)
	}
	id, err := openPostTx(ctx, tx, toInt64s(audience))
	if err != nil {
		_ = tx.Rollback(ctx)
		r.logger.ErrorContext(ctx, "Failed to open post", "error", err)
		return 0, fmt.Errorf("open post: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("open post %d: commit: %w", id, err)
	}
	return id, nil
}

func openPostTx(ctx context.Context, tx pgx.Tx, audience []int64) (int64, error) {
	var id int64
	if err := tx.QueryRow(ctx, queryLedgerNext).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate post id: %w", err)
	}
	if _, err := tx.Exec(ctx, queryClearRecipients, id); err != nil {
		return 0, fmt.Errorf("clear recipients of post %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, queryClearDeliveries, id); err != nil {
		return 0, fmt.Errorf("clear deliveries of post %d: %w", id, err)
	}
	if err := seedAudience(ctx, tx, id, audience); err != nil {
		return 0, fmt.Errorf("seed post %d: %w", id, err)
	}
	return id, nil
}

func (r *PgLedgerRepository) ResetPostID(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, queryLedgerReset); err != nil {
		return fmt.Errorf("reset post id: %w", err)
	}
	return nil
}

func (r *PgLedgerRepository) SetPendingText(ctx context.Context, text string) error {
	if _, err := r.db.Exec(ctx, queryLedgerSetText, text); err != nil {
		return fmt.Errorf("set pending text: %w", err)
	}
	return nil
}

func (r *PgLedgerRepository) PendingText(ctx context.Context) (string, bool, error) {
	var text *string
	err := r.db.QueryRow(ctx, queryLedgerGetText).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read pending text: %w", err)
	}
	if text == nil || *text == "" {
		return "", false, nil
	}
	return *text, true, nil
}

func seedAudience(ctx context.Context, tx pgx.Tx, postID int64, ids []int64) error {
	if _, err := tx.Exec(ctx, querySeedRecipients, postID, ids); err != nil {
		return fmt.Errorf("insert recipients: %w", err)
	}
	if _, err := tx.Exec(ctx, querySeedDeliveries, postID, ids); err != nil {
		return fmt.Errorf("insert deliveries: %w", err)
	}
	return nil
}
