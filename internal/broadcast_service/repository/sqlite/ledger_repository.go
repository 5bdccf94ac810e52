package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// LedgerRepository keeps the post counter and pending text in the singleton post_ledger row.
type LedgerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLedgerRepository(db *sql.DB, logger *slog.Logger) *LedgerRepository {
	return &LedgerRepository{db: db, logger: logger.With("component", "ledger_repository_sqlite")}
}

func (r *LedgerRepository) CurrentPostID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT current_post_id FROM post_ledger WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read current post id: %w", err)
	}
	return id, nil
}

// OpenPost allocates the next id and seeds its audience in one transaction. Rows a post with the
// same id left behind before a counter reset are dropped first.
func (r *LedgerRepository) OpenPost(ctx context.Context, audience []domain.RecipientID) (id int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("open post: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			r.logger.ErrorContext(ctx, "Failed to open post", "error", err)
		}
	}()

	if err = tx.QueryRowContext(ctx,
		`UPDATE post_ledger SET current_post_id = current_post_id + 1 WHERE id = 1 RETURNING current_post_id`).Scan(&id); err != nil {
		return 0, fmt.Errorf("open post: allocate: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM post_recipients WHERE post_id = ?`, id); err != nil {
		return 0, fmt.Errorf("open post %d: clear recipients: %w", id, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM deliveries WHERE post_id = ?`, id); err != nil {
		return 0, fmt.Errorf("open post %d: clear deliveries: %w", id, err)
	}
	if err = seedAudience(ctx, tx, id, audience); err != nil {
		return 0, fmt.Errorf("open post %d: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("open post %d: commit: %w", id, err)
	}
	r.logger.DebugContext(ctx, "Opened post", "post_id", id, "recipients", len(audience))
	return id, nil
}

func (r *LedgerRepository) ResetPostID(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE post_ledger SET current_post_id = 0 WHERE id = 1`); err != nil {
		return fmt.Errorf("reset post id: %w", err)
	}
	return nil
}

func (r *LedgerRepository) SetPendingText(ctx context.Context, text string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE post_ledger SET pending_text = ? WHERE id = 1`, text); err != nil {
		return fmt.Errorf("set pending text: %w", err)
	}
	return nil
}

func (r *LedgerRepository) PendingText(ctx context.Context) (string, bool, error) {
	var text sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT pending_text FROM post_ledger WHERE id = 1`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read pending text: %w", err)
	}
	if !text.Valid || text.String == "" {
		return "", false, nil
	}
	return text.String, true, nil
}

func seedAudience(ctx context.Context, tx *sql.Tx, postID int64, ids []domain.RecipientID) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_recipients (post_id, recipient_id) VALUES (?, ?)`, postID, int64(id)); err != nil {
			return fmt.Errorf("recipient %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO deliveries (post_id, recipient_id, retrieval_count) VALUES (?, ?, 0)`, postID, int64(id)); err != nil {
			return fmt.Errorf("delivery %d: %w", id, err)
		}
	}
	return nil
}
