package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// PostLedger hands out post ids and holds the retrievable text. Both live in storage so a
// restart resumes exactly where the previous process stopped.
type PostLedger struct {
	repo      domain.LedgerRepository
	operators domain.Operators
	logger    *slog.Logger
}

func NewPostLedger(repo domain.LedgerRepository, operators domain.Operators, logger *slog.Logger) *PostLedger {
	return &PostLedger{repo: repo, operators: operators, logger: logger.With("component", "post_ledger")}
}

// CurrentPostID returns the latest issued id, 0 when nothing was published.
func (l *PostLedger) CurrentPostID(ctx context.Context) (int64, error) {
	id, err := l.repo.CurrentPostID(ctx)
	if err != nil {
		return 0, fmt.Errorf("current post id: %w", err)
	}
	return id, nil
}

// OpenPost allocates the next id together with its fan-out set. A failure leaves the counter
// where it was, so retrievals keep resolving against the previous post.
func (l *PostLedger) OpenPost(ctx context.Context, audience []domain.RecipientID) (int64, error) {
	unique := dedupe(audience)
	id, err := l.repo.OpenPost(ctx, unique)
	if err != nil {
		return 0, fmt.Errorf("open post: %w", err)
	}
	l.logger.InfoContext(ctx, "New post opened", "post_id", id, "recipients", len(unique))
	return id, nil
}

// ResetPosts sets the counter back to 0. Delivery history is kept.
func (l *PostLedger) ResetPosts(ctx context.Context, actor domain.RecipientID) error {
	if err := l.operators.Authorize(actor); err != nil {
		return err
	}
	if err := l.repo.ResetPostID(ctx); err != nil {
		return fmt.Errorf("reset posts: %w", err)
	}
	l.logger.InfoContext(ctx, "Post counter reset", "actor", actor)
	return nil
}

func (l *PostLedger) SetPendingText(ctx context.Context, text string) error {
	if err := l.repo.SetPendingText(ctx, text); err != nil {
		return fmt.Errorf("set pending text: %w", err)
	}
	return nil
}

// PendingText returns the retrievable text; ok is false when none was set.
func (l *PostLedger) PendingText(ctx context.Context) (string, bool, error) {
	text, ok, err := l.repo.PendingText(ctx)
	if err != nil {
		return "", false, fmt.Errorf("pending text: %w", err)
	}
	return text, ok, nil
}

// UpdateText lets an operator set or correct the text without republishing the photo.
func (l *PostLedger) UpdateText(ctx context.Context, actor domain.RecipientID, text string) error {
	if err := l.operators.Authorize(actor); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyText
	}
	if err := l.SetPendingText(ctx, text); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Pending text updated", "actor", actor, "length", len(text))
	return nil
}
