package domain

import "context"

// Transport delivers content to recipients. Implementations must bound every call with
// their own timeout or the caller's context.
type Transport interface {
	SendPhoto(ctx context.Context, to RecipientID, photo PhotoRef, caption string, withAffordance bool) error
	SendText(ctx context.Context, to RecipientID, text string) error
}

// OperatorNotifier reaches the operators. Callers treat failures as best-effort.
type OperatorNotifier interface {
	NotifyOperator(ctx context.Context, text string) error
}

// EventPublisher emits domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
