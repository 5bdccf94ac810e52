package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// eventEmitter publishes domain events as JSON. A nil publisher disables it.
type eventEmitter struct {
	publisher domain.EventPublisher
	logger    *slog.Logger
}

func (e *eventEmitter) emit(ctx context.Context, subject string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := e.publisher.Publish(ctx, subject, data); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

// OperatorAlerts sends best-effort notifications to the operator: each send is bounded by the
// timeout, and failures are logged and counted, never returned.
type OperatorAlerts struct {
	notifier domain.OperatorNotifier
	timeout  time.Duration
	logger   *slog.Logger
}

func NewOperatorAlerts(notifier domain.OperatorNotifier, timeout time.Duration, logger *slog.Logger) *OperatorAlerts {
	return &OperatorAlerts{notifier: notifier, timeout: timeout, logger: logger.With("component", "operator_alerts")}
}

func (a *OperatorAlerts) Send(ctx context.Context, text string) {
	if a == nil || a.notifier == nil {
		return
	}
	notifyCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		notifyCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.notifier.NotifyOperator(notifyCtx, text); err != nil {
		operatorNotifyFailuresCounter.Inc()
		a.logger.WarnContext(ctx, "Operator notification failed", "error", err)
	}
}
