package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// Notifier delivers operator notifications to every configured operator chat.
type Notifier struct {
	transport domain.Transport
	operators []domain.RecipientID
}

func NewNotifier(transport domain.Transport, operators domain.Operators) *Notifier {
	return &Notifier{transport: transport, operators: operators.IDs()}
}

// NotifyOperator tries every operator and joins the failures.
func (n *Notifier) NotifyOperator(ctx context.Context, text string) error {
	var errs []error
	for _, id := range n.operators {
		if err := n.transport.SendText(ctx, id, text); err != nil {
			errs = append(errs, fmt.Errorf("notify operator %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
