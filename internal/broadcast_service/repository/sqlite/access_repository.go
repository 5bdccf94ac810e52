package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

type AccessRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAccessRepository(db *sql.DB, logger *slog.Logger) *AccessRepository {
	return &AccessRepository{db: db, logger: logger.With("component", "access_repository_sqlite")}
}

func (r *AccessRepository) Add(ctx context.Context, id domain.RecipientID) error {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO whitelist (user_id) VALUES (?)`, int64(id)); err != nil {
		return fmt.Errorf("whitelist add %d: %w", id, err)
	}
	return nil
}

func (r *AccessRepository) Remove(ctx context.Context, id domain.RecipientID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM whitelist WHERE user_id = ?`, int64(id))
	if err != nil {
		return false, fmt.Errorf("whitelist remove %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("whitelist remove %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *AccessRepository) Has(ctx context.Context, id domain.RecipientID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM whitelist WHERE user_id = ? LIMIT 1`, int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("whitelist lookup %d: %w", id, err)
	}
	return true, nil
}

func (r *AccessRepository) List(ctx context.Context) ([]domain.RecipientID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM whitelist ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("whitelist list: %w", err)
	}
	return scanIDs(rows)
}

func (r *AccessRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM whitelist`).Scan(&n); err != nil {
		return 0, fmt.Errorf("whitelist count: %w", err)
	}
	return n, nil
}

func (r *AccessRepository) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, full_name, username) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET full_name = excluded.full_name, username = excluded.username`,
		int64(p.ID), strings.TrimSpace(p.DisplayName), strings.TrimSpace(p.Handle))
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.ID, err)
	}
	return nil
}

func (r *AccessRepository) GetProfile(ctx context.Context, id domain.RecipientID) (domain.Profile, bool, error) {
	p := domain.Profile{ID: id}
	err := r.db.QueryRowContext(ctx, `SELECT full_name, username FROM users WHERE user_id = ? LIMIT 1`, int64(id)).
		Scan(&p.DisplayName, &p.Handle)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("get profile %d: %w", id, err)
	}
	return p, true, nil
}

func scanIDs(rows *sql.Rows) ([]domain.RecipientID, error) {
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
