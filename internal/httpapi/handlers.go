package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"condosync/internal/condo"
	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/notify"
	"condosync/internal/permission"
)

// listResponse is the common shape for collection reads: the cached items
// plus the store state, so clients can render loading and stale-data states.
type listResponse[T any] struct {
	Items []T          `json:"items"`
	State entity.State `json:"state"`
	Error string       `json:"error,omitempty"`
}

func writeList[T any](w http.ResponseWriter, items []T, state entity.State, err error) {
	resp := listResponse[T]{Items: items, State: state}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type suggestionHandler struct {
	service *condo.Suggestions
	logger  *slog.Logger
}

func (h *suggestionHandler) list(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Fetch(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, state, err := h.service.Snapshot()
	writeList(w, items, state, err)
}

func (h *suggestionHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.service.Submit(r.Context(), condo.Suggestion{Title: req.Title, Description: req.Description})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *suggestionHandler) like(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.service.Like(r.Context(), chi.URLParam(r, "id")), chi.URLParam(r, "id"))
}

func (h *suggestionHandler) unlike(w http.ResponseWriter, r *http.Request) {
	h.reply(w, h.service.Unlike(r.Context(), chi.URLParam(r, "id")), chi.URLParam(r, "id"))
}

func (h *suggestionHandler) resolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.reply(w, h.service.Resolve(r.Context(), chi.URLParam(r, "id"), req.Status), chi.URLParam(r, "id"))
}

func (h *suggestionHandler) reply(w http.ResponseWriter, err error, id string) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if got, ok := h.service.GetByID(id); ok {
		writeJSON(w, http.StatusOK, got)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type packageHandler struct {
	service *condo.Packages
	logger  *slog.Logger
}

func (h *packageHandler) list(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Fetch(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, state, err := h.service.Snapshot()
	writeList(w, items, state, err)
}

func (h *packageHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID   string `json:"recipientId"`
		RecipientName string `json:"recipientName"`
		Apartment     string `json:"apartment"`
		Description   string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.service.Register(r.Context(), condo.Package{
		RecipientID:   req.RecipientID,
		RecipientName: req.RecipientName,
		Apartment:     req.Apartment,
		Description:   req.Description,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *packageHandler) deliver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SignedBy string `json:"signedBy"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.MarkDelivered(r.Context(), id, req.SignedBy); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if got, ok := h.service.GetByID(id); ok {
		writeJSON(w, http.StatusOK, got)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type debtorHandler struct {
	service *condo.Debtors
	logger  *slog.Logger
}

func (h *debtorHandler) list(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Fetch(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, state, err := h.service.Snapshot()
	writeList(w, items, state, err)
}

func (h *debtorHandler) open(w http.ResponseWriter, r *http.Request) {
	var req condo.Debtor
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.service.Open(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *debtorHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meetingHandler struct {
	service *condo.Meetings
	users   *condo.Users
	logger  *slog.Logger
}

func (h *meetingHandler) list(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Fetch(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, state, err := h.service.Snapshot()
	writeList(w, items, state, err)
}

func (h *meetingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req condo.Meeting
	if !decodeBody(w, r, &req) {
		return
	}
	if actor, ok := identity.FromContext(r.Context()); ok {
		req.CreatedBy = actor.ID
	}
	var residentIDs []string
	if h.users != nil {
		if err := h.users.Fetch(r.Context()); err == nil {
			residentIDs = h.users.ResidentIDs()
		}
	}
	created, err := h.service.CreateAndAnnounce(r.Context(), req, residentIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *meetingHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.service.ConfirmAttendance)
}

func (h *meetingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.service.CancelAttendance)
}

func (h *meetingHandler) attendance(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := op(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if got, ok := h.service.GetByID(id); ok {
		writeJSON(w, http.StatusOK, got)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type notificationHandler struct {
	notifier *notify.Notifier
	inbox    chan<- notify.Notification
	logger   *slog.Logger
}

func (h *notificationHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("missing identity"))
		return
	}
	notes, err := h.notifier.ListForUser(r.Context(), actor.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *notificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bulk enqueues one announcement per target user onto the notification
// worker's inbox. Admin only. The request returns before delivery; the
// emission ledger keeps a retried request from double-sending.
func (h *notificationHandler) bulk(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok || !permission.CanPerform(actor.Role, permission.ActionBulkNotify, actor.ID, permission.Target{}) {
		writeJSON(w, http.StatusForbidden, errorBody("bulk notifications are admin-only"))
		return
	}

	var req struct {
		Title         string   `json:"title"`
		Message       string   `json:"message"`
		RelatedItemID string   `json:"relatedItemId"`
		TargetUserIDs []string `json:"targetUserIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || len(req.TargetUserIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("title and target users are required"))
		return
	}

	queued := 0
	for _, userID := range req.TargetUserIDs {
		note := notify.Notification{
			Title:         req.Title,
			Message:       req.Message,
			Type:          notify.TypeAnnouncement,
			RelatedItemID: req.RelatedItemID,
			TargetUserID:  userID,
		}
		select {
		case h.inbox <- note:
			queued++
		default:
			writeJSON(w, http.StatusServiceUnavailable, errorBody("notification queue is full"))
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})
}
