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
	queryGetCount        = `SELECT retrieval_count FROM deliveries WHERE post_id = $1 AND recipient_id = $2`
	queryIncrementCapped = `INSERT INTO deliveries (post_id, recipient_id, retrieval_count) VALUES ($1, $2, 1)
		ON CONFLICT (post_id, recipient_id) DO UPDATE SET retrieval_count = deliveries.retrieval_count + 1
		WHERE deliveries.retrieval_count < $3
		RETURNING retrieval_count`
	queryRecipientsOf   = `SELECT recipient_id FROM post_recipients WHERE post_id = $1 ORDER BY recipient_id ASC`
	queryCountDelivered = `SELECT COUNT(*) FROM deliveries WHERE post_id = $1 AND retrieval_count > 0`
	queryRequested      = `SELECT recipient_id FROM deliveries WHERE post_id = $1 AND retrieval_count > 0 ORDER BY recipient_id ASC`
)

type PgDeliveryRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgDeliveryRepository(db DBTX, logger *slog.Logger) *PgDeliveryRepository {
	return &PgDeliveryRepository{db: db, logger: logger.With("component", "delivery_repository_pg")}
}

func (r *PgDeliveryRepository) GetCount(ctx context.Context, postID int64, id domain.RecipientID) (int, error) {
	var n int32
	err := r.db.QueryRow(ctx, queryGetCount, postID, int64(id)).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get count post %d recipient %d: %w", postID, id, err)
	}
	return int(n), nil
}

func (r *PgDeliveryRepository) IncrementCapped(ctx context.Context, postID int64, id domain.RecipientID, limit int) (int, error) {
	if limit < 1 {
		return 0, domain.ErrQuotaExceeded
	}
	var n int32
	err := r.db.QueryRow(ctx, queryIncrementCapped, postID, int64(id), int32(limit)).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("increment post %d recipient %d: %w", postID, id, err)
	}
	return int(n), nil
}

func (r *PgDeliveryRepository) RecipientsOf(ctx context.Context, postID int64) ([]domain.RecipientID, error) {
	rows, err := r.db.Query(ctx, queryRecipientsOf, postID)
	if err != nil {
		return nil, fmt.Errorf("recipients of post %d: %w", postID, err)
	}
	return collectIDs(rows)
}

func (r *PgDeliveryRepository) CountDelivered(ctx context.Context, postID int64) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx, queryCountDelivered, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count delivered post %d: %w", postID, err)
	}
	return int(n), nil
}

func (r *PgDeliveryRepository) Requested(ctx context.Context, postID int64) ([]domain.RecipientID, error) {
	rows, err := r.db.Query(ctx, queryRequested, postID)
	if err != nil {
		return nil, fmt.Errorf("requested of post %d: %w", postID, err)
	}
	return collectIDs(rows)
}
