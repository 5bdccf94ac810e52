package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/app"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// AdminHandler exposes the operator commands over HTTP.
type AdminHandler struct {
	core     *app.Core
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminHandler(core *app.Core, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		core:     core,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("handler", "admin"),
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/whitelist", h.handleListWhitelist)
	r.Post("/whitelist", h.handleApprove)
	r.Delete("/whitelist/{userID}", h.handleRemove)
	r.Get("/posts/current", h.handleCurrentPost)
	r.Post("/posts/reset", h.handleReset)
	r.Put("/posts/text", h.handleUpdateText)
	r.Get("/posts/{postID}/status", h.handleStatus)
	r.Post("/broadcasts/text", h.handleBroadcastText)
}

func (h *AdminHandler) handleListWhitelist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := h.core.Registry.ListAuthorized(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := WhitelistResponse{Users: make([]WhitelistEntry, len(ids))}
	for i, id := range ids {
		resp.Users[i] = WhitelistEntry{UserID: int64(id), Label: h.core.Registry.LabelOf(ctx, id)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if !h.decode(w, r, &req) {
		return
	}
	operator, _ := OperatorFrom(r.Context())
	if err := h.core.Registry.Approve(r.Context(), operator, domain.RecipientID(req.UserID)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRecipientID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	operator, _ := OperatorFrom(r.Context())
	removed, err := h.core.Registry.Remove(r.Context(), operator, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RemoveResponse{UserID: int64(id), Removed: removed})
}

func (h *AdminHandler) handleCurrentPost(w http.ResponseWriter, r *http.Request) {
	id, err := h.core.Ledger.CurrentPostID(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostIDResponse{PostID: id})
}

func (h *AdminHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	operator, _ := OperatorFrom(r.Context())
	if err := h.core.Ledger.ResetPosts(r.Context(), operator); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostIDResponse{PostID: 0})
}

func (h *AdminHandler) handleUpdateText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !h.decode(w, r, &req) {
		return
	}
	operator, _ := OperatorFrom(r.Context())
	if err := h.core.Ledger.UpdateText(r.Context(), operator, req.Text); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "postID")
	var postID int64
	if raw != "current" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, "Invalid post id", http.StatusBadRequest)
			return
		}
		postID = n
	}
	operator, _ := OperatorFrom(r.Context())
	report, err := h.core.Status.Report(r.Context(), operator, postID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		PostID:          report.PostID,
		WhitelistSize:   report.WhitelistSize,
		Recipients:      int64s(report.Recipients),
		DeliveredCount:  report.DeliveredCount,
		NotYetRequested: int64s(report.NotYetRequested),
	})
}

func (h *AdminHandler) handleBroadcastText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !h.decode(w, r, &req) {
		return
	}
	operator, _ := OperatorFrom(r.Context())
	report, err := h.core.Coordinator.BroadcastText(r.Context(), operator, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := BroadcastResponse{
		Succeeded: make([]RecipientResult, 0, len(report.Succeeded)),
		Failed:    make([]RecipientResult, 0, len(report.Failed)),
	}
	for _, s := range report.Succeeded {
		resp.Succeeded = append(resp.Succeeded, RecipientResult{UserID: int64(s.ID), Label: s.Label})
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, RecipientResult{UserID: int64(f.Recipient.ID), Label: f.Recipient.Label, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads and validates a JSON body; on failure the response is already written.
func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, "Request body is empty", http.StatusBadRequest)
			return false
		}
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		writeError(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotOperator):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidRecipient), errors.Is(err, domain.ErrEmptyText):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrEmptyAudience), errors.Is(err, domain.ErrNoActivePost):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		reqID := chi_middleware.GetReqID(r.Context())
		h.logger.ErrorContext(r.Context(), "Admin request failed", "error", err, "request_id", reqID)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", RequestID: reqID})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func int64s(ids []domain.RecipientID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
