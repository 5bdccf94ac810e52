package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// DeliveryTracker records who a post was fanned out to and how often each recipient pulled
// its text.
type DeliveryTracker struct {
	repo   domain.DeliveryRepository
	logger *slog.Logger
}

func NewDeliveryTracker(repo domain.DeliveryRepository, logger *slog.Logger) *DeliveryTracker {
	return &DeliveryTracker{repo: repo, logger: logger.With("component", "delivery_tracker")}
}

// GetCount returns the retrieval count, 0 when no record exists.
func (t *DeliveryTracker) GetCount(ctx context.Context, postID int64, id domain.RecipientID) (int, error) {
	n, err := t.repo.GetCount(ctx, postID, id)
	if err != nil {
		return 0, fmt.Errorf("get count: %w", err)
	}
	return n, nil
}

// TryIncrement admits one retrieval unless the recipient already reached limit. The check
// and the write are one storage operation; callers must not pre-check with GetCount.
func (t *DeliveryTracker) TryIncrement(ctx context.Context, postID int64, id domain.RecipientID, limit int) (int, error) {
	n, err := t.repo.IncrementCapped(ctx, postID, id, limit)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return 0, domain.ErrQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("try increment: %w", err)
	}
	return n, nil
}

// RecipientsOf returns the fan-out set of postID ascending.
func (t *DeliveryTracker) RecipientsOf(ctx context.Context, postID int64) ([]domain.RecipientID, error) {
	ids, err := t.repo.RecipientsOf(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("recipients of: %w", err)
	}
	return domain.SortRecipients(ids), nil
}

// CountDelivered counts recipients that pulled the text at least once.
func (t *DeliveryTracker) CountDelivered(ctx context.Context, postID int64) (int, error) {
	n, err := t.repo.CountDelivered(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("count delivered: %w", err)
	}
	return n, nil
}

// NotYetRequested returns fan-out recipients that have not pulled the text.
func (t *DeliveryTracker) NotYetRequested(ctx context.Context, postID int64) ([]domain.RecipientID, error) {
	recipients, err := t.RecipientsOf(ctx, postID)
	if err != nil {
		return nil, err
	}
	requested, err := t.repo.Requested(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("not yet requested: %w", err)
	}
	done := make(map[domain.RecipientID]struct{}, len(requested))
	for _, id := range requested {
		done[id] = struct{}{}
	}
	pending := make([]domain.RecipientID, 0, len(recipients))
	for _, id := range recipients {
		if _, ok := done[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

func dedupe(ids []domain.RecipientID) []domain.RecipientID {
	seen := make(map[domain.RecipientID]struct{}, len(ids))
	out := make([]domain.RecipientID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return domain.SortRecipients(out)
}
