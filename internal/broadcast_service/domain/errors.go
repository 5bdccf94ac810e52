package domain

import "errors"

var (
	// ErrNotOperator rejects management operations from anyone but a configured operator.
	ErrNotOperator = errors.New("operation restricted to operators")
	// ErrEmptyAudience aborts a publish when nobody is whitelisted. No state is written.
	ErrEmptyAudience = errors.New("whitelist is empty")
	// ErrQuotaExceeded is returned by the tracker when the capped increment was refused.
	ErrQuotaExceeded = errors.New("retrieval quota exceeded")
	// ErrNoActivePost is returned by status reporting when no post has been published.
	ErrNoActivePost = errors.New("no active post")
	// ErrInvalidRecipient indicates a non-positive recipient identity.
	ErrInvalidRecipient = errors.New("invalid recipient id")
	// ErrEmptyText rejects setting blank retrievable text.
	ErrEmptyText = errors.New("text is empty")
	// ErrMissingPhoto indicates a publish request without a photo reference.
	ErrMissingPhoto = errors.New("photo reference is required")
)
