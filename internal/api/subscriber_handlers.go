package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/service/subscriber"
	"github.com/ignite/mailroom/internal/service/tag"
)

// Handlers holds the services the API layer dispatches to.
type Handlers struct {
	subscribers *subscriber.Service
	tags        *tag.Service
	tagMode     config.TagMode
}

// NewHandlers creates the API handler set.
func NewHandlers(subs *subscriber.Service, tags *tag.Service, tagMode config.TagMode) *Handlers {
	if tagMode == "" {
		tagMode = config.TagModePreserve
	}
	return &Handlers{subscribers: subs, tags: tags, tagMode: tagMode}
}

// syncRequest is the payload for the bulk sync endpoint.
type syncRequest struct {
	Subscribers []subscriber.SyncRecord `json:"subscribers"`
}

// HandleSubscribersSync accepts a batch of subscriber records, reconciles
// them against existing workspace data, and returns the persisted rows in
// ascending id order.
func (h *Handlers) HandleSubscribersSync(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return
	}

	var req syncRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Subscribers) == 0 {
		httputil.Unprocessable(w, "subscribers is required and must be a non-empty array", nil)
		return
	}

	rows, err := h.subscribers.Sync(r.Context(), wsID, req.Subscribers)

	var vErr *subscriber.ValidationError
	var sErr *subscriber.SyncError
	switch {
	case errors.As(err, &vErr):
		httputil.Unprocessable(w, "invalid subscriber records", vErr.Problems)
		return
	case errors.As(err, &sErr):
		// Chunks that committed stay committed; name the failures and
		// return the persisted state alongside them.
		httputil.ErrorWithDetails(w, http.StatusConflict, "sync partially failed", map[string]any{
			"failed_emails": sErr.FailedEmails(),
			"subscribers":   rows,
		})
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	if h.tagMode == config.TagModeReplace {
		h.applyTagReplacement(r, wsID, req.Subscribers, rows)
	}

	httputil.OK(w, map[string]any{"data": rows})
}

// applyTagReplacement syncs submitted tag ids per subscriber after a
// successful replace-mode sync. Tag failures are logged, not surfaced: the
// subscriber rows are already reconciled.
func (h *Handlers) applyTagReplacement(r *http.Request, wsID int64, records []subscriber.SyncRecord, rows []domain.Subscriber) {
	byEmail := make(map[string]int64, len(rows))
	for _, row := range rows {
		byEmail[row.Email] = row.ID
	}
	for _, rec := range records {
		if rec.Tags == nil {
			continue
		}
		id, ok := byEmail[rec.Email]
		if !ok {
			continue
		}
		if err := h.tags.SyncSubscriber(r.Context(), wsID, id, rec.Tags); err != nil {
			logger.Warn("replace-mode tag sync failed", "subscriber_email", rec.Email, "error", err)
		}
	}
}

// HandleSubscribersList returns a page of the workspace's subscribers.
func (h *Handlers) HandleSubscribersList(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return
	}

	params := ParsePagination(r, 50, 500)
	orderBy := r.URL.Query().Get("order_by")
	if orderBy == "" {
		orderBy = "last_name"
	}

	rows, total, err := h.subscribers.Paginate(r.Context(), wsID, orderBy, params.Limit, params.Offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(rows, params, int64(total)))
}

// HandleSubscriberStore creates or updates a single subscriber by email.
func (h *Handlers) HandleSubscriberStore(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return
	}

	var rec subscriber.SyncRecord
	if !httputil.Decode(w, r, &rec) {
		return
	}

	s, err := h.subscribers.StoreOrUpdate(r.Context(), wsID, rec)
	var vErr *subscriber.ValidationError
	if errors.As(err, &vErr) {
		httputil.Unprocessable(w, "invalid subscriber record", vErr.Problems)
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"data": s})
}

// HandleSubscriberShow returns a single subscriber.
func (h *Handlers) HandleSubscriberShow(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid subscriber id")
		return
	}

	s, err := h.subscribers.Find(r.Context(), wsID, id)
	if errors.Is(err, subscriber.ErrNotFound) {
		httputil.NotFound(w, "subscriber not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"data": s})
}

// HandleSubscriberUpdate rewrites a subscriber addressed by id.
func (h *Handlers) HandleSubscriberUpdate(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid subscriber id")
		return
	}

	var rec subscriber.SyncRecord
	if !httputil.Decode(w, r, &rec) {
		return
	}

	s, err := h.subscribers.UpdateByID(r.Context(), wsID, id, rec)
	var vErr *subscriber.ValidationError
	switch {
	case errors.As(err, &vErr):
		httputil.Unprocessable(w, "invalid subscriber record", vErr.Problems)
		return
	case errors.Is(err, subscriber.ErrNotFound):
		httputil.NotFound(w, "subscriber not found")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"data": s})
}

// HandleSubscriberDelete removes a subscriber.
func (h *Handlers) HandleSubscriberDelete(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(r)
	if !ok {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid subscriber id")
		return
	}

	err = h.subscribers.Delete(r.Context(), wsID, id)
	if errors.Is(err, subscriber.ErrNotFound) {
		httputil.NotFound(w, "subscriber not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
