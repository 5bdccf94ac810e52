package domain

// PhotoRef identifies an already-uploaded photo on the transport side. Photos and image
// documents both collapse into it at the dispatch boundary.
type PhotoRef struct {
	FileID string
}

// PublishRequest is an operator's new post.
type PublishRequest struct {
	Photo   PhotoRef
	Caption string
}

// Recipient pairs an identity with its rendered label for reports.
type Recipient struct {
	ID    RecipientID
	Label string
}

// FanoutFailure records one recipient the transport could not reach.
type FanoutFailure struct {
	Recipient Recipient
	Err       error
}

// PublishReport summarises a publish. Failed recipients are listed individually.
type PublishReport struct {
	BroadcastID     string
	PostID          int64
	Succeeded       []Recipient
	Failed          []FanoutFailure
	TextFromCaption bool
	// TextAwaiting is set when the post carried no caption; the text has to come from a
	// separate text-setting action.
	TextAwaiting bool
}

// TextBroadcastReport summarises a plain text broadcast, which allocates no post.
type TextBroadcastReport struct {
	Succeeded []Recipient
	Failed    []FanoutFailure
}

// StatusReport describes delivery progress of one post.
type StatusReport struct {
	PostID          int64
	WhitelistSize   int
	Recipients      []RecipientID
	DeliveredCount  int
	NotYetRequested []RecipientID
}
