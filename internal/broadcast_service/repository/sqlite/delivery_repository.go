package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

type DeliveryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDeliveryRepository(db *sql.DB, logger *slog.Logger) *DeliveryRepository {
	return &DeliveryRepository{db: db, logger: logger.With("component", "delivery_repository_sqlite")}
}

func (r *DeliveryRepository) GetCount(ctx context.Context, postID int64, id domain.RecipientID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT retrieval_count FROM deliveries WHERE post_id = ? AND recipient_id = ?`, postID, int64(id)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get count post %d recipient %d: %w", postID, id, err)
	}
	return n, nil
}

func (r *DeliveryRepository) IncrementCapped(ctx context.Context, postID int64, id domain.RecipientID, limit int) (int, error) {
	if limit < 1 {
		return 0, domain.ErrQuotaExceeded
	}
	var n int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO deliveries (post_id, recipient_id, retrieval_count) VALUES (?, ?, 1)
		ON CONFLICT (post_id, recipient_id) DO UPDATE SET retrieval_count = deliveries.retrieval_count + 1
		WHERE deliveries.retrieval_count < ?
		RETURNING retrieval_count`, postID, int64(id), limit).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("increment post %d recipient %d: %w", postID, id, err)
	}
	return n, nil
}

func (r *DeliveryRepository) RecipientsOf(ctx context.Context, postID int64) ([]domain.RecipientID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT recipient_id FROM post_recipients WHERE post_id = ? ORDER BY recipient_id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("recipients of post %d: %w", postID, err)
	}
	return scanIDs(rows)
}

func (r *DeliveryRepository) CountDelivered(ctx context.Context, postID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deliveries WHERE post_id = ? AND retrieval_count > 0`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delivered post %d: %w", postID, err)
	}
	return n, nil
}

func (r *DeliveryRepository) Requested(ctx context.Context, postID int64) ([]domain.RecipientID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT recipient_id FROM deliveries WHERE post_id = ? AND retrieval_count > 0 ORDER BY recipient_id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("requested of post %d: %w", postID, err)
	}
	return scanIDs(rows)
}
