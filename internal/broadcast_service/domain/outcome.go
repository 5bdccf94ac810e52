package domain

import "fmt"

// OutcomeKind enumerates the results of a retrieval attempt.
type OutcomeKind string

const (
	OutcomeDelivered     OutcomeKind = "delivered"
	OutcomeNotAuthorized OutcomeKind = "not_authorized"
	OutcomeNoActivePost  OutcomeKind = "no_active_post"
	OutcomeNoTextYet     OutcomeKind = "no_text_yet"
	OutcomeQuotaExceeded OutcomeKind = "quota_exceeded"
)

// Channel names the presentation a retrieval came through.
type Channel string

const (
	ChannelCommand Channel = "command"
	ChannelButton  Channel = "button"
)

// Outcome is the result of a retrieval attempt. Recipient-facing conditions are outcomes,
// not errors.
type Outcome struct {
	Kind   OutcomeKind
	PostID int64
	Text   string
	Count  int
	Cap    int
}

// Reply is the exact text shown to the recipient. Both presentations render through it.
func (o Outcome) Reply() string {
	switch o.Kind {
	case OutcomeDelivered:
		return o.Text
	case OutcomeNotAuthorized:
		return "❌ You are not approved."
	case OutcomeNoActivePost:
		return "No active post yet."
	case OutcomeNoTextYet:
		return "No text saved yet."
	case OutcomeQuotaExceeded:
		return fmt.Sprintf("⚠️ You already received the text for Post #%d (%d/%d).", o.PostID, o.Cap, o.Cap)
	default:
		return "Something went wrong, try again later."
	}
}

// Delivered reports whether the text was released.
func (o Outcome) Delivered() bool { return o.Kind == OutcomeDelivered }
