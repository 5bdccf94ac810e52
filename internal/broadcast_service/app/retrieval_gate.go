package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// Requester is the identity behind a retrieval attempt, as observed by the transport.
type Requester struct {
	ID          domain.RecipientID
	DisplayName string
	Handle      string
}

// RetrievalGate decides whether a recipient may pull the current post's text. The command
// and the button both come through Retrieve; the channel only labels notifications and metrics.
type RetrievalGate struct {
	registry *AccessRegistry
	ledger   *PostLedger
	tracker  *DeliveryTracker
	alerts   *OperatorAlerts
	events   *eventEmitter
	cap      int
	logger   *slog.Logger
	now      func() time.Time
}

func NewRetrievalGate(
	registry *AccessRegistry,
	ledger *PostLedger,
	tracker *DeliveryTracker,
	alerts *OperatorAlerts,
	publisher domain.EventPublisher,
	retrievalCap int,
	logger *slog.Logger,
) *RetrievalGate {
	l := logger.With("component", "retrieval_gate")
	return &RetrievalGate{
		registry: registry,
		ledger:   ledger,
		tracker:  tracker,
		alerts:   alerts,
		events:   &eventEmitter{publisher: publisher, logger: l},
		cap:      retrievalCap,
		logger:   l,
		now:      time.Now,
	}
}

// Cap returns the per-post retrieval limit.
func (g *RetrievalGate) Cap() int { return g.cap }

// Retrieve evaluates one attempt. The returned error is reserved for storage faults; every
// recipient-facing condition is an Outcome.
func (g *RetrievalGate) Retrieve(ctx context.Context, req Requester, via domain.Channel) (domain.Outcome, error) {
	if err := g.registry.RecordObservedIdentity(ctx, req.ID, req.DisplayName, req.Handle); err != nil {
		g.logger.WarnContext(ctx, "Could not record requester identity", "recipient_id", req.ID, "error", err)
	}

	outcome, err := g.evaluate(ctx, req.ID)
	if err != nil {
		return domain.Outcome{}, err
	}
	retrievalOutcomesCounter.WithLabelValues(string(outcome.Kind), string(via)).Inc()

	switch outcome.Kind {
	case domain.OutcomeNotAuthorized:
		g.logger.InfoContext(ctx, "Retrieval denied to non-whitelisted identity", "recipient_id", req.ID, "channel", via)
		g.alerts.Send(ctx, fmt.Sprintf("🚨 Non-whitelisted user tried %s: %s", channelLabel(via), g.registry.LabelOf(ctx, req.ID)))
		g.emit(ctx, domain.SubjectRetrievalDenied, req.ID, outcome, via)
	case domain.OutcomeDelivered:
		g.logger.InfoContext(ctx, "Text released", "recipient_id", req.ID, "post_id", outcome.PostID, "count", outcome.Count, "channel", via)
		g.alerts.Send(ctx, fmt.Sprintf("✅ Sent text to approved user %s via %s (%d/%d)",
			g.registry.LabelOf(ctx, req.ID), channelLabel(via), outcome.Count, outcome.Cap))
		g.emit(ctx, domain.SubjectRetrievalAdmitted, req.ID, outcome, via)
	case domain.OutcomeQuotaExceeded:
		g.logger.InfoContext(ctx, "Retrieval quota exhausted", "recipient_id", req.ID, "post_id", outcome.PostID, "channel", via)
		g.emit(ctx, domain.SubjectRetrievalDenied, req.ID, outcome, via)
	}
	return outcome, nil
}

// evaluate walks the gate in order: membership, active post, text, quota.
func (g *RetrievalGate) evaluate(ctx context.Context, id domain.RecipientID) (domain.Outcome, error) {
	ok, err := g.registry.IsAuthorized(ctx, id)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !ok {
		return domain.Outcome{Kind: domain.OutcomeNotAuthorized, Cap: g.cap}, nil
	}

	postID, err := g.ledger.CurrentPostID(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	if postID == 0 {
		return domain.Outcome{Kind: domain.OutcomeNoActivePost, Cap: g.cap}, nil
	}

	text, ok, err := g.ledger.PendingText(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !ok {
		return domain.Outcome{Kind: domain.OutcomeNoTextYet, PostID: postID, Cap: g.cap}, nil
	}

	count, err := g.tracker.TryIncrement(ctx, postID, id, g.cap)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return domain.Outcome{Kind: domain.OutcomeQuotaExceeded, PostID: postID, Count: g.cap, Cap: g.cap}, nil
	}
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Kind: domain.OutcomeDelivered, PostID: postID, Text: text, Count: count, Cap: g.cap}, nil
}

func (g *RetrievalGate) emit(ctx context.Context, subject string, id domain.RecipientID, o domain.Outcome, via domain.Channel) {
	g.events.emit(ctx, subject, domain.RetrievalEvent{
		EventID:     uuid.NewString(),
		RecipientID: int64(id),
		PostID:      o.PostID,
		Outcome:     o.Kind,
		Channel:     via,
		Count:       o.Count,
		Cap:         o.Cap,
		OccurredAt:  g.now().UTC(),
	})
}

func channelLabel(via domain.Channel) string {
	if via == domain.ChannelButton {
		return "button"
	}
	return "/send"
}
