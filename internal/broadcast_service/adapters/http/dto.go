package http

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type ApproveRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type TextRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4096"`
}

type WhitelistEntry struct {
	UserID int64  `json:"user_id"`
	Label  string `json:"label"`
}

type WhitelistResponse struct {
	Users []WhitelistEntry `json:"users"`
}

type RemoveResponse struct {
	UserID  int64 `json:"user_id"`
	Removed bool  `json:"removed"`
}

type PostIDResponse struct {
	PostID int64 `json:"post_id"`
}

type RecipientResult struct {
	UserID int64  `json:"user_id"`
	Label  string `json:"label"`
	Error  string `json:"error,omitempty"`
}

type BroadcastResponse struct {
	Succeeded []RecipientResult `json:"succeeded"`
	Failed    []RecipientResult `json:"failed"`
}

type StatusResponse struct {
	PostID          int64   `json:"post_id"`
	WhitelistSize   int     `json:"whitelist_size"`
	Recipients      []int64 `json:"recipients"`
	DeliveredCount  int     `json:"delivered_count"`
	NotYetRequested []int64 `json:"not_yet_requested"`
}
