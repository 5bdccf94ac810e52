package app

import (
	"context"
	"log/slog"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// StatusReporter summarises delivery progress for operators.
type StatusReporter struct {
	registry *AccessRegistry
	ledger   *PostLedger
	tracker  *DeliveryTracker
	logger   *slog.Logger
}

func NewStatusReporter(registry *AccessRegistry, ledger *PostLedger, tracker *DeliveryTracker, logger *slog.Logger) *StatusReporter {
	return &StatusReporter{registry: registry, ledger: ledger, tracker: tracker, logger: logger.With("component", "status_reporter")}
}

// Report describes postID, or the current post when postID is 0.
func (s *StatusReporter) Report(ctx context.Context, actor domain.RecipientID, postID int64) (*domain.StatusReport, error) {
	if err := s.registry.Operators().Authorize(actor); err != nil {
		return nil, err
	}
	if postID == 0 {
		current, err := s.ledger.CurrentPostID(ctx)
		if err != nil {
			return nil, err
		}
		if current == 0 {
			return nil, domain.ErrNoActivePost
		}
		postID = current
	}

	size, err := s.registry.Size(ctx)
	if err != nil {
		return nil, err
	}
	recipients, err := s.tracker.RecipientsOf(ctx, postID)
	if err != nil {
		return nil, err
	}
	delivered, err := s.tracker.CountDelivered(ctx, postID)
	if err != nil {
		return nil, err
	}
	pending, err := s.tracker.NotYetRequested(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &domain.StatusReport{
		PostID:          postID,
		WhitelistSize:   size,
		Recipients:      recipients,
		DeliveredCount:  delivered,
		NotYetRequested: pending,
	}, nil
}
