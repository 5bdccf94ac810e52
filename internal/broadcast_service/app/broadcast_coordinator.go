package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

const photoCaptionFormat = "Post #%d\nTap 📩 Send or use /send to get the text."

// CoordinatorConfig bounds the fan-out.
type CoordinatorConfig struct {
	FanoutConcurrency int
	TransportTimeout  time.Duration
}

// BroadcastCoordinator runs a publish: open a post with its audience, then fan the photo out.
type BroadcastCoordinator struct {
	registry  *AccessRegistry
	ledger    *PostLedger
	transport domain.Transport
	events    *eventEmitter
	cfg       CoordinatorConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewBroadcastCoordinator(
	registry *AccessRegistry,
	ledger *PostLedger,
	transport domain.Transport,
	publisher domain.EventPublisher,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *BroadcastCoordinator {
	if cfg.FanoutConcurrency < 1 {
		cfg.FanoutConcurrency = 1
	}
	l := logger.With("component", "broadcast_coordinator")
	return &BroadcastCoordinator{
		registry:  registry,
		ledger:    ledger,
		transport: transport,
		events:    &eventEmitter{publisher: publisher, logger: l},
		cfg:       cfg,
		logger:    l,
		now:       time.Now,
	}
}

// Publish posts a photo to every whitelisted recipient. An empty audience aborts before a post
// id is allocated. Transport failures never abort the fan-out; they are listed in the report.
func (c *BroadcastCoordinator) Publish(ctx context.Context, actor domain.RecipientID, req domain.PublishRequest) (*domain.PublishReport, error) {
	if err := c.registry.Operators().Authorize(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Photo.FileID) == "" {
		return nil, domain.ErrMissingPhoto
	}
	start := c.now()
	defer func() {
		publishDurationHist.WithLabelValues("photo").Observe(time.Since(start).Seconds())
	}()

	caption := strings.TrimSpace(req.Caption)
	if caption != "" {
		if err := c.ledger.SetPendingText(ctx, caption); err != nil {
			return nil, err
		}
	}

	audience, err := c.registry.ListAuthorized(ctx)
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		return nil, domain.ErrEmptyAudience
	}

	postID, err := c.ledger.OpenPost(ctx, audience)
	if err != nil {
		return nil, err
	}

	broadcastID := uuid.NewString()
	logger := c.logger.With("broadcast_id", broadcastID, "post_id", postID)
	logger.InfoContext(ctx, "Starting photo fan-out", "audience", len(audience))

	text := fmt.Sprintf(photoCaptionFormat, postID)
	succeeded, failed := c.fanOut(ctx, "photo", audience, func(sendCtx context.Context, to domain.RecipientID) error {
		return c.transport.SendPhoto(sendCtx, to, req.Photo, text, true)
	})

	report := &domain.PublishReport{
		BroadcastID:     broadcastID,
		PostID:          postID,
		Succeeded:       succeeded,
		Failed:          failed,
		TextFromCaption: caption != "",
		TextAwaiting:    caption == "",
	}
	logger.InfoContext(ctx, "Photo fan-out finished", "succeeded", len(succeeded), "failed", len(failed))

	c.events.emit(ctx, domain.SubjectPostPublished, domain.PostPublishedEvent{
		EventID:     uuid.NewString(),
		BroadcastID: broadcastID,
		PostID:      postID,
		Succeeded:   recipientIDs(succeeded),
		Failed:      failureIDs(failed),
		OccurredAt:  c.now().UTC(),
	})
	return report, nil
}

// BroadcastText sends plain text to every whitelisted recipient. No post is allocated.
func (c *BroadcastCoordinator) BroadcastText(ctx context.Context, actor domain.RecipientID, text string) (*domain.TextBroadcastReport, error) {
	if err := c.registry.Operators().Authorize(actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyText
	}
	start := c.now()
	defer func() {
		publishDurationHist.WithLabelValues("text").Observe(time.Since(start).Seconds())
	}()

	audience, err := c.registry.ListAuthorized(ctx)
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		return nil, domain.ErrEmptyAudience
	}

	succeeded, failed := c.fanOut(ctx, "text", audience, func(sendCtx context.Context, to domain.RecipientID) error {
		return c.transport.SendText(sendCtx, to, text)
	})
	c.logger.InfoContext(ctx, "Text broadcast finished", "succeeded", len(succeeded), "failed", len(failed))
	return &domain.TextBroadcastReport{Succeeded: succeeded, Failed: failed}, nil
}

// fanOut calls send once per recipient with bounded concurrency. Results keep the ascending
// order of ids.
func (c *BroadcastCoordinator) fanOut(
	ctx context.Context,
	kind string,
	ids []domain.RecipientID,
	send func(ctx context.Context, to domain.RecipientID) error,
) ([]domain.Recipient, []domain.FanoutFailure) {
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(c.cfg.FanoutConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			sendCtx := ctx
			if c.cfg.TransportTimeout > 0 {
				var cancel context.CancelFunc
				sendCtx, cancel = context.WithTimeout(ctx, c.cfg.TransportTimeout)
				defer cancel()
			}
			errs[i] = send(sendCtx, id)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := make([]domain.Recipient, 0, len(ids))
	var failed []domain.FanoutFailure
	for i, id := range ids {
		r := c.registry.recipient(ctx, id)
		if errs[i] != nil {
			fanoutSendsCounter.WithLabelValues(kind, "failure").Inc()
			c.logger.WarnContext(ctx, "Fan-out send failed", "kind", kind, "recipient_id", id, "error", errs[i])
			failed = append(failed, domain.FanoutFailure{Recipient: r, Err: errs[i]})
			continue
		}
		fanoutSendsCounter.WithLabelValues(kind, "success").Inc()
		succeeded = append(succeeded, r)
	}
	return succeeded, failed
}

func recipientIDs(rs []domain.Recipient) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = int64(r.ID)
	}
	return out
}

func failureIDs(fs []domain.FanoutFailure) []int64 {
	out := make([]int64, len(fs))
	for i, f := range fs {
		out[i] = int64(f.Recipient.ID)
	}
	return out
}
