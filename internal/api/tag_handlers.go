package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/service/tag"
)

// tagSubscribersRequest carries the subscriber ids for a tag membership
// operation.
type tagSubscribersRequest struct {
	Subscribers []int64 `json:"subscribers"`
}

func (h *Handlers) tagRequest(w http.ResponseWriter, r *http.Request) (wsID, tagID int64, ids []int64, ok bool) {
	wsID, found := workspaceID(r)
	if !found {
		httputil.BadRequest(w, "missing or invalid "+WorkspaceHeader+" header")
		return 0, 0, nil, false
	}
	tagID, err := strconv.ParseInt(chi.URLParam(r, "tagID"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid tag id")
		return 0, 0, nil, false
	}
	var req tagSubscribersRequest
	if !httputil.Decode(w, r, &req) {
		return 0, 0, nil, false
	}
	return wsID, tagID, req.Subscribers, true
}

// HandleTagSubscribersStore attaches subscribers to a tag.
func (h *Handlers) HandleTagSubscribersStore(w http.ResponseWriter, r *http.Request) {
	wsID, tagID, ids, ok := h.tagRequest(w, r)
	if !ok {
		return
	}
	members, err := h.tags.Attach(r.Context(), wsID, tagID, ids)
	h.respondTagMembers(w, members, err)
}

// HandleTagSubscribersUpdate replaces a tag's membership.
func (h *Handlers) HandleTagSubscribersUpdate(w http.ResponseWriter, r *http.Request) {
	wsID, tagID, ids, ok := h.tagRequest(w, r)
	if !ok {
		return
	}
	members, err := h.tags.Sync(r.Context(), wsID, tagID, ids)
	h.respondTagMembers(w, members, err)
}

// HandleTagSubscribersDestroy detaches subscribers from a tag.
func (h *Handlers) HandleTagSubscribersDestroy(w http.ResponseWriter, r *http.Request) {
	wsID, tagID, ids, ok := h.tagRequest(w, r)
	if !ok {
		return
	}
	members, err := h.tags.Detach(r.Context(), wsID, tagID, ids)
	h.respondTagMembers(w, members, err)
}

func (h *Handlers) respondTagMembers(w http.ResponseWriter, members any, err error) {
	if errors.Is(err, tag.ErrNotFound) {
		httputil.NotFound(w, "tag not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"data": members})
}
