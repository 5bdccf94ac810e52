package domain

import "time"

const (
	SubjectPostPublished     = "broadcast.post.published"
	SubjectRetrievalAdmitted = "broadcast.retrieval.delivered"
	SubjectRetrievalDenied   = "broadcast.retrieval.denied"
)

// PostPublishedEvent is emitted after a publish fan-out completes.
type PostPublishedEvent struct {
	EventID     string    `json:"event_id"`
	BroadcastID string    `json:"broadcast_id"`
	PostID      int64     `json:"post_id"`
	Succeeded   []int64   `json:"succeeded"`
	Failed      []int64   `json:"failed"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RetrievalEvent is emitted for every retrieval attempt by a known identity.
type RetrievalEvent struct {
	EventID     string      `json:"event_id"`
	RecipientID int64       `json:"recipient_id"`
	PostID      int64       `json:"post_id"`
	Outcome     OutcomeKind `json:"outcome"`
	Channel     Channel     `json:"channel"`
	Count       int         `json:"count"`
	Cap         int         `json:"cap"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
