package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// AccessRegistry owns the whitelist and the observed display metadata of every identity.
type AccessRegistry struct {
	repo      domain.AccessRepository
	operators domain.Operators
	logger    *slog.Logger
}

func NewAccessRegistry(repo domain.AccessRepository, operators domain.Operators, logger *slog.Logger) *AccessRegistry {
	return &AccessRegistry{
		repo:      repo,
		operators: operators,
		logger:    logger.With("component", "access_registry"),
	}
}

// IsOperator reports whether id may run management operations.
func (r *AccessRegistry) IsOperator(id domain.RecipientID) bool {
	return r.operators.Is(id)
}

// Operators returns the configured operator set.
func (r *AccessRegistry) Operators() domain.Operators {
	return r.operators
}

// Approve whitelists id. Approving a member again is a no-op.
func (r *AccessRegistry) Approve(ctx context.Context, actor, id domain.RecipientID) error {
	if err := r.operators.Authorize(actor); err != nil {
		return err
	}
	if !id.Valid() {
		return domain.ErrInvalidRecipient
	}
	if err := r.repo.Add(ctx, id); err != nil {
		return fmt.Errorf("approve %d: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Recipient approved", "recipient_id", id, "actor", actor)
	return nil
}

// Remove drops id from the whitelist and reports whether it was a member.
func (r *AccessRegistry) Remove(ctx context.Context, actor, id domain.RecipientID) (bool, error) {
	if err := r.operators.Authorize(actor); err != nil {
		return false, err
	}
	if !id.Valid() {
		return false, domain.ErrInvalidRecipient
	}
	removed, err := r.repo.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("remove %d: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Recipient removal", "recipient_id", id, "actor", actor, "was_member", removed)
	return removed, nil
}

func (r *AccessRegistry) IsAuthorized(ctx context.Context, id domain.RecipientID) (bool, error) {
	ok, err := r.repo.Has(ctx, id)
	if err != nil {
		return false, fmt.Errorf("authorize %d: %w", id, err)
	}
	return ok, nil
}

// ListAuthorized returns the whitelist ascending by id.
func (r *AccessRegistry) ListAuthorized(ctx context.Context) ([]domain.RecipientID, error) {
	ids, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authorized: %w", err)
	}
	return domain.SortRecipients(ids), nil
}

// ListLabels renders the whitelist for an operator listing.
func (r *AccessRegistry) ListLabels(ctx context.Context, actor domain.RecipientID) ([]string, error) {
	if err := r.operators.Authorize(actor); err != nil {
		return nil, err
	}
	ids, err := r.ListAuthorized(ctx)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = r.LabelOf(ctx, id)
	}
	return labels, nil
}

// Size returns the number of whitelisted identities.
func (r *AccessRegistry) Size(ctx context.Context) (int, error) {
	n, err := r.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("whitelist size: %w", err)
	}
	return n, nil
}

// RecordObservedIdentity stores the latest display metadata, whitelisted or not.
func (r *AccessRegistry) RecordObservedIdentity(ctx context.Context, id domain.RecipientID, displayName, handle string) error {
	if !id.Valid() {
		return domain.ErrInvalidRecipient
	}
	p := domain.Profile{
		ID:          id,
		DisplayName: strings.TrimSpace(displayName),
		Handle:      strings.TrimSpace(handle),
	}
	if err := r.repo.UpsertProfile(ctx, p); err != nil {
		return fmt.Errorf("record identity %d: %w", id, err)
	}
	return nil
}

// LabelOf renders "{id} - {name} @{handle}". Lookup failures degrade to the bare id.
func (r *AccessRegistry) LabelOf(ctx context.Context, id domain.RecipientID) string {
	p, ok, err := r.repo.GetProfile(ctx, id)
	if err != nil {
		r.logger.WarnContext(ctx, "Profile lookup failed, using bare id", "recipient_id", id, "error", err)
		return id.String()
	}
	if !ok {
		return id.String()
	}
	return p.Label()
}

func (r *AccessRegistry) recipient(ctx context.Context, id domain.RecipientID) domain.Recipient {
	return domain.Recipient{ID: id, Label: r.LabelOf(ctx, id)}
}
