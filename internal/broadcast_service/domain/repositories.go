package domain

import "context"

// AccessRepository persists the whitelist and observed profiles.
type AccessRepository interface {
	Add(ctx context.Context, id RecipientID) error
	Remove(ctx context.Context, id RecipientID) (bool, error)
	Has(ctx context.Context, id RecipientID) (bool, error)
	// List returns whitelisted ids ascending.
	List(ctx context.Context) ([]RecipientID, error)
	Count(ctx context.Context) (int, error)
	UpsertProfile(ctx context.Context, p Profile) error
	// GetProfile returns ok=false when the identity was never observed.
	GetProfile(ctx context.Context, id RecipientID) (Profile, bool, error)
}

// LedgerRepository persists the post counter and the pending text.
type LedgerRepository interface {
	CurrentPostID(ctx context.Context) (int64, error)
	// OpenPost increments the counter, clears rows left under the new id by a post issued
	// before a reset, and seeds the audience with zero counts. All of it commits together or
	// not at all; the new id is never visible without its fan-out set.
	OpenPost(ctx context.Context, audience []RecipientID) (int64, error)
	ResetPostID(ctx context.Context) error
	SetPendingText(ctx context.Context, text string) error
	// PendingText returns ok=false when no text was ever stored.
	PendingText(ctx context.Context) (string, bool, error)
}

// DeliveryRepository reads fan-out sets and maintains per-recipient retrieval counts. Fan-out
// sets are written by LedgerRepository.OpenPost.
type DeliveryRepository interface {
	GetCount(ctx context.Context, postID int64, id RecipientID) (int, error)
	// IncrementCapped performs a single guarded increment. It returns ErrQuotaExceeded when
	// the count already reached limit.
	IncrementCapped(ctx context.Context, postID int64, id RecipientID, limit int) (int, error)
	// RecipientsOf returns the fan-out set ascending.
	RecipientsOf(ctx context.Context, postID int64) ([]RecipientID, error)
	CountDelivered(ctx context.Context, postID int64) (int, error)
	// Requested returns ids with a count above zero for postID.
	Requested(ctx context.Context, postID int64) ([]RecipientID, error)
}
