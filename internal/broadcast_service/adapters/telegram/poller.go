package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// UpdateSource is the long-polling half of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error)
}

// Poller feeds updates to a handler until its context ends. Failed polls back off and retry.
type Poller struct {
	source      UpdateSource
	pollTimeout time.Duration
	backoff     time.Duration
	logger      *slog.Logger
}

func NewPoller(source UpdateSource, pollTimeout time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		source:      source,
		pollTimeout: pollTimeout,
		backoff:     3 * time.Second,
		logger:      logger.With("component", "telegram_poller"),
	}
}

// Run blocks until ctx is cancelled. The offset is advanced past every update handed to handle.
func (p *Poller) Run(ctx context.Context, handle func(context.Context, Update)) error {
	var offset int64
	p.logger.InfoContext(ctx, "Long polling started", "poll_timeout", p.pollTimeout)
	for {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "Long polling stopped")
			return nil
		}
		updates, err := p.source.GetUpdates(ctx, offset, int(p.pollTimeout.Seconds()))
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			p.logger.ErrorContext(ctx, "getUpdates failed, backing off", "error", err, "backoff", p.backoff)
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			handle(ctx, u)
		}
	}
}
