package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

const (
	queryWhitelistAdd    = `INSERT INTO whitelist (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	queryWhitelistRemove = `DELETE FROM whitelist WHERE user_id = $1`
	queryWhitelistHas    = `SELECT 1 FROM whitelist WHERE user_id = $1 LIMIT 1`
	queryWhitelistList   = `SELECT user_id FROM whitelist ORDER BY user_id ASC`
	queryWhitelistCount  = `SELECT COUNT(*) FROM whitelist`
	queryProfileUpsert   = `INSERT INTO users (user_id, full_name, username) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET full_name = EXCLUDED.full_name, username = EXCLUDED.username`
	queryProfileGet = `SELECT full_name, username FROM users WHERE user_id = $1 LIMIT 1`
)

type PgAccessRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgAccessRepository(db DBTX, logger *slog.Logger) *PgAccessRepository {
	return &PgAccessRepository{db: db, logger: logger.With("component", "access_repository_pg")}
}

func (r *PgAccessRepository) Add(ctx context.Context, id domain.RecipientID) error {
	if _, err := r.db.Exec(ctx, queryWhitelistAdd, int64(id)); err != nil {
		r.logger.ErrorContext(ctx, "Failed to add to whitelist", "user_id", id, "error", err)
		return fmt.Errorf("whitelist add %d: %w", id, err)
	}
	return nil
}

func (r *PgAccessRepository) Remove(ctx context.Context, id domain.RecipientID) (bool, error) {
	tag, err := r.db.Exec(ctx, queryWhitelistRemove, int64(id))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to remove from whitelist", "user_id", id, "error", err)
		return false, fmt.Errorf("whitelist remove %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgAccessRepository) Has(ctx context.Context, id domain.RecipientID) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, queryWhitelistHas, int64(id)).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("whitelist lookup %d: %w", id, err)
	}
	return true, nil
}

func (r *PgAccessRepository) List(ctx context.Context) ([]domain.RecipientID, error) {
	rows, err := r.db.Query(ctx, queryWhitelistList)
	if err != nil {
		return nil, fmt.Errorf("whitelist list: %w", err)
	}
	return collectIDs(rows)
}

func (r *PgAccessRepository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx, queryWhitelistCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("whitelist count: %w", err)
	}
	return int(n), nil
}

func (r *PgAccessRepository) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.db.Exec(ctx, queryProfileUpsert,
		int64(p.ID), strings.TrimSpace(p.DisplayName), strings.TrimSpace(p.Handle))
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.ID, err)
	}
	return nil
}

func (r *PgAccessRepository) GetProfile(ctx context.Context, id domain.RecipientID) (domain.Profile, bool, error) {
	p := domain.Profile{ID: id}
	err := r.db.QueryRow(ctx, queryProfileGet, int64(id)).Scan(&p.DisplayName, &p.Handle)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("get profile %d: %w", id, err)
	}
	return p, true, nil
}
